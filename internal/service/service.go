// Package service implements the business operations of civita. Each service
// runs its writes in a single database transaction; notification fan-out
// happens after commit and never affects the primary outcome.
package service

// Pagination bounds shared by list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxUserPageSize = 500
)

// pageBounds normalizes a page/pageSize pair into limit and offset.
func pageBounds(page, pageSize, maxSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return pageSize, (page - 1) * pageSize
}
