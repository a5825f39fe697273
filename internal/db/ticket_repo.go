package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/geo"
	"github.com/akorkmaz/civita/internal/models"
)

// TicketRepo provides database operations for tickets and their satellites:
// locations, status logs, followers and photos.
type TicketRepo struct {
	db DBTX
}

// NewTicketRepo creates a new TicketRepo.
func NewTicketRepo(db DBTX) *TicketRepo {
	return &TicketRepo{db: db}
}

// TicketFilter defines filters for listing tickets. Soft-deleted tickets are
// always excluded.
type TicketFilter struct {
	Status     *models.TicketStatus
	CategoryID *string
	TeamID     *string
	ReporterID *string
	District   *string
	City       *string
	Unassigned bool
	Limit      int
	Offset     int
}

const ticketColumns = `t.id, t.title, t.description, t.status, t.category_id, t.location_id,
	t.reporter_id, t.team_id, t.resolved_at, t.created_at, t.updated_at`

// CreateLocation inserts the location row a ticket will reference.
func (r *TicketRepo) CreateLocation(ctx context.Context, l *models.Location) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.City == "" {
		l.City = models.DefaultCity
	}
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid location: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO locations (id, latitude, longitude, address, district, city, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.Latitude, l.Longitude, nullString(l.Address), nullString(l.District), l.City,
		FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	l.CreatedAt = now
	return nil
}

// GetLocation retrieves a location by ID.
func (r *TicketRepo) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	query := `SELECT id, latitude, longitude, address, district, city, created_at FROM locations WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var l models.Location
	var address, district sql.NullString
	err := row.Scan(&l.ID, &l.Latitude, &l.Longitude, &address, &district, &l.City, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan location: %w", err)
	}
	l.Address = address.String
	l.District = district.String
	return &l, nil
}

// Create creates a new ticket. The location must already exist.
func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = models.StatusNew
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid ticket: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO tickets (id, title, description, status, category_id, location_id,
			reporter_id, team_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Description, t.Status, t.CategoryID, t.LocationID,
		t.ReporterID, nullStringPtr(t.TeamID), FormatTime(now), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetByID retrieves a ticket by ID. Soft-deleted tickets are not returned.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id = ? AND t.deleted_at IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Update updates a ticket's mutable fields including status and assignment.
func (r *TicketRepo) Update(ctx context.Context, t *models.Ticket) error {
	query := `
		UPDATE tickets SET title = ?, description = ?, status = ?, category_id = ?,
			team_id = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		t.Title, t.Description, t.Status, t.CategoryID,
		nullStringPtr(t.TeamID), nullTime(t.ResolvedAt), FormatTime(NowUTC()), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	return requireRowAffected(result, "ticket")
}

// SoftDelete marks a ticket as deleted. It disappears from all lists and
// lookups but its rows remain for audit.
func (r *TicketRepo) SoftDelete(ctx context.Context, id string) error {
	now := FormatTime(NowUTC())
	query := `UPDATE tickets SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	return requireRowAffected(result, "ticket")
}

// List retrieves tickets matching the given filter, newest first, with
// category and location populated.
func (r *TicketRepo) List(ctx context.Context, filter TicketFilter) ([]*models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `,
			c.id, c.name, c.description, c.is_active, c.created_at,
			l.id, l.latitude, l.longitude, l.address, l.district, l.city, l.created_at
		FROM tickets t
		JOIN categories c ON c.id = t.category_id
		JOIN locations l ON l.id = t.location_id
		WHERE t.deleted_at IS NULL
	`
	where, args := buildTicketWhere(filter)
	query += where
	query += " ORDER BY t.created_at DESC, t.id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicketWithJoins(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

// Count counts tickets matching the given filter.
func (r *TicketRepo) Count(ctx context.Context, filter TicketFilter) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM tickets t
		JOIN locations l ON l.id = t.location_id
		WHERE t.deleted_at IS NULL
	`
	where, args := buildTicketWhere(filter)
	query += where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// ListInBox retrieves non-deleted tickets whose location falls inside the
// bounding box, optionally restricted to a category. The box is a coarse
// prefilter; exact distance is computed by the caller.
func (r *TicketRepo) ListInBox(ctx context.Context, box geo.BoundingBox, categoryID *string) ([]*models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `,
			c.id, c.name, c.description, c.is_active, c.created_at,
			l.id, l.latitude, l.longitude, l.address, l.district, l.city, l.created_at
		FROM tickets t
		JOIN categories c ON c.id = t.category_id
		JOIN locations l ON l.id = t.location_id
		WHERE t.deleted_at IS NULL
			AND l.latitude BETWEEN ? AND ?
			AND l.longitude BETWEEN ? AND ?
	`
	args := []interface{}{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
	if categoryID != nil {
		query += " AND t.category_id = ?"
		args = append(args, *categoryID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets in box: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicketWithJoins(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

// CountActiveByTeam counts a team's tickets in active statuses. Used for
// workload reporting. Escalated tickets are off the team's plate until a
// manager sends them back.
func (r *TicketRepo) CountActiveByTeam(ctx context.Context, teamID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM tickets
		WHERE team_id = ? AND deleted_at IS NULL
			AND status IN ('NEW', 'IN_PROGRESS')
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, teamID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count team tickets: %w", err)
	}
	return count, nil
}

// AddStatusLog appends an entry to the ticket's status audit trail.
func (r *TicketRepo) AddStatusLog(ctx context.Context, log *models.StatusLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}

	now := NowUTC()
	query := `
		INSERT INTO status_logs (id, ticket_id, old_status, new_status, changed_by_id, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var oldStatus interface{}
	if log.OldStatus != nil {
		oldStatus = string(*log.OldStatus)
	}
	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.TicketID, oldStatus, log.NewStatus,
		nullStringPtr(log.ChangedByID), nullString(log.Comment), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to add status log: %w", err)
	}

	log.CreatedAt = now
	return nil
}

// ListStatusLogs returns the ticket's status history, oldest first, with the
// acting user's name populated where the user still exists.
func (r *TicketRepo) ListStatusLogs(ctx context.Context, ticketID string) ([]*models.StatusLog, error) {
	query := `
		SELECT sl.id, sl.ticket_id, sl.old_status, sl.new_status, sl.changed_by_id, sl.comment, sl.created_at,
			COALESCE(u.name, '')
		FROM status_logs sl
		LEFT JOIN users u ON u.id = sl.changed_by_id
		WHERE sl.ticket_id = ?
		ORDER BY sl.created_at, sl.id
	`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.StatusLog
	for rows.Next() {
		var l models.StatusLog
		var oldStatus, changedBy, comment sql.NullString
		if err := rows.Scan(&l.ID, &l.TicketID, &oldStatus, &l.NewStatus, &changedBy, &comment, &l.CreatedAt, &l.ChangedByName); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		if oldStatus.Valid {
			s := models.TicketStatus(oldStatus.String)
			l.OldStatus = &s
		}
		if changedBy.Valid {
			l.ChangedByID = &changedBy.String
		}
		l.Comment = comment.String
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status logs: %w", err)
	}
	return logs, nil
}

// AddFollower subscribes a user to a ticket. Adding an existing follower is a
// no-op; the bool reports whether a new row was inserted.
func (r *TicketRepo) AddFollower(ctx context.Context, ticketID, userID string) (bool, error) {
	query := `INSERT OR IGNORE INTO ticket_followers (ticket_id, user_id, followed_at) VALUES (?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, ticketID, userID, FormatTime(NowUTC()))
	if err != nil {
		return false, fmt.Errorf("failed to add follower: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// RemoveFollower unsubscribes a user from a ticket.
func (r *TicketRepo) RemoveFollower(ctx context.Context, ticketID, userID string) error {
	query := `DELETE FROM ticket_followers WHERE ticket_id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, ticketID, userID); err != nil {
		return fmt.Errorf("failed to remove follower: %w", err)
	}
	return nil
}

// IsFollowing reports whether a user follows a ticket.
func (r *TicketRepo) IsFollowing(ctx context.Context, ticketID, userID string) (bool, error) {
	query := `SELECT COUNT(*) FROM ticket_followers WHERE ticket_id = ? AND user_id = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, ticketID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check follower: %w", err)
	}
	return count > 0, nil
}

// ListFollowerIDs returns the user ids following a ticket.
func (r *TicketRepo) ListFollowerIDs(ctx context.Context, ticketID string) ([]string, error) {
	query := `SELECT user_id FROM ticket_followers WHERE ticket_id = ? ORDER BY followed_at, user_id`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddPhoto attaches an uploaded photo record to a ticket.
func (r *TicketRepo) AddPhoto(ctx context.Context, p *models.TicketPhoto) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	now := NowUTC()
	query := `
		INSERT INTO ticket_photos (id, ticket_id, object_key, filename, content_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.TicketID, p.ObjectKey, p.Filename, p.ContentType, FormatTime(now))
	if err != nil {
		return fmt.Errorf("failed to add photo: %w", err)
	}

	p.CreatedAt = now
	return nil
}

// ListPhotos returns the photos attached to a ticket, oldest first.
func (r *TicketRepo) ListPhotos(ctx context.Context, ticketID string) ([]*models.TicketPhoto, error) {
	query := `
		SELECT id, ticket_id, object_key, filename, content_type, created_at
		FROM ticket_photos WHERE ticket_id = ? ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.TicketPhoto
	for rows.Next() {
		var p models.TicketPhoto
		if err := rows.Scan(&p.ID, &p.TicketID, &p.ObjectKey, &p.Filename, &p.ContentType, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

func buildTicketWhere(filter TicketFilter) (string, []interface{}) {
	var where string
	args := []interface{}{}

	if filter.Status != nil {
		where += " AND t.status = ?"
		args = append(args, *filter.Status)
	}
	if filter.CategoryID != nil {
		where += " AND t.category_id = ?"
		args = append(args, *filter.CategoryID)
	}
	if filter.TeamID != nil {
		where += " AND t.team_id = ?"
		args = append(args, *filter.TeamID)
	}
	if filter.Unassigned {
		where += " AND t.team_id IS NULL"
	}
	if filter.ReporterID != nil {
		where += " AND t.reporter_id = ?"
		args = append(args, *filter.ReporterID)
	}
	if filter.District != nil {
		where += " AND l.district = ?"
		args = append(args, *filter.District)
	}
	if filter.City != nil {
		where += " AND l.city = ?"
		args = append(args, *filter.City)
	}
	return where, args
}

func (r *TicketRepo) scanOne(row *sql.Row) (*models.Ticket, error) {
	var t models.Ticket
	var teamID sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.CategoryID, &t.LocationID,
		&t.ReporterID, &teamID, &resolvedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	if teamID.Valid {
		t.TeamID = &teamID.String
	}
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return &t, nil
}

func scanTicketWithJoins(rows *sql.Rows) (*models.Ticket, error) {
	var t models.Ticket
	var c models.Category
	var l models.Location
	var teamID sql.NullString
	var resolvedAt sql.NullTime
	var catDesc, address, district sql.NullString
	var catActive int

	err := rows.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.CategoryID, &t.LocationID,
		&t.ReporterID, &teamID, &resolvedAt, &t.CreatedAt, &t.UpdatedAt,
		&c.ID, &c.Name, &catDesc, &catActive, &c.CreatedAt,
		&l.ID, &l.Latitude, &l.Longitude, &address, &district, &l.City, &l.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	if teamID.Valid {
		t.TeamID = &teamID.String
	}
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	c.Description = catDesc.String
	c.IsActive = catActive != 0
	l.Address = address.String
	l.District = district.String
	t.Category = &c
	t.Location = &l
	return &t, nil
}
