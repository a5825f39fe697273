package db

import (
	"context"
	"fmt"
)

// AnalyticsRepo provides aggregate queries for the reporting overview.
type AnalyticsRepo struct {
	db DBTX
}

// NewAnalyticsRepo creates a new AnalyticsRepo.
func NewAnalyticsRepo(db DBTX) *AnalyticsRepo {
	return &AnalyticsRepo{db: db}
}

// StatusCounts returns ticket counts grouped by status, excluding deleted
// tickets.
func (r *AnalyticsRepo) StatusCounts(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM tickets WHERE deleted_at IS NULL GROUP BY status`
	return r.countMap(ctx, query)
}

// CategoryCounts returns ticket counts grouped by category name.
func (r *AnalyticsRepo) CategoryCounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT c.name, COUNT(*)
		FROM tickets t JOIN categories c ON c.id = t.category_id
		WHERE t.deleted_at IS NULL
		GROUP BY c.name
	`
	return r.countMap(ctx, query)
}

// DistrictCounts returns ticket counts grouped by the reported district.
// Tickets without a district are grouped under the empty string.
func (r *AnalyticsRepo) DistrictCounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT COALESCE(l.district, ''), COUNT(*)
		FROM tickets t JOIN locations l ON l.id = t.location_id
		WHERE t.deleted_at IS NULL
		GROUP BY l.district
	`
	return r.countMap(ctx, query)
}

// TeamCounts returns ticket counts grouped by assigned team name. Unassigned
// tickets are not represented.
func (r *AnalyticsRepo) TeamCounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT tm.name, COUNT(*)
		FROM tickets t JOIN teams tm ON tm.id = t.team_id
		WHERE t.deleted_at IS NULL
		GROUP BY tm.name
	`
	return r.countMap(ctx, query)
}

// AverageResolutionSeconds returns the mean time from creation to first
// resolution across resolved tickets, or 0 when nothing has been resolved.
func (r *AnalyticsRepo) AverageResolutionSeconds(ctx context.Context) (float64, error) {
	query := `
		SELECT COALESCE(AVG((julianday(resolved_at) - julianday(created_at)) * 86400.0), 0)
		FROM tickets
		WHERE resolved_at IS NOT NULL AND deleted_at IS NULL
	`
	var avg float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute resolution time: %w", err)
	}
	return avg, nil
}

// AverageRating returns the mean feedback rating across all tickets, or 0
// when no feedback exists.
func (r *AnalyticsRepo) AverageRating(ctx context.Context) (float64, error) {
	query := `SELECT COALESCE(AVG(rating), 0) FROM feedback`
	var avg float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average rating: %w", err)
	}
	return avg, nil
}

func (r *AnalyticsRepo) countMap(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}
