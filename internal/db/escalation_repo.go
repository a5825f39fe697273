package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// EscalationRepo provides database operations for escalation requests.
type EscalationRepo struct {
	db DBTX
}

// NewEscalationRepo creates a new EscalationRepo.
func NewEscalationRepo(db DBTX) *EscalationRepo {
	return &EscalationRepo{db: db}
}

// EscalationFilter defines filters for listing escalation requests.
type EscalationFilter struct {
	Status      *models.EscalationStatus
	TicketID    *string
	RequesterID *string
	TeamID      *string
	Limit       int
	Offset      int
}

const escalationColumns = `e.id, e.ticket_id, e.requester_id, e.reviewer_id, e.reason, e.status,
	e.review_comment, e.created_at, e.reviewed_at`

// Create creates a new escalation request. A second PENDING request for the
// same ticket violates a unique index and fails here.
func (r *EscalationRepo) Create(ctx context.Context, e *models.EscalationRequest) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = models.EscalationPending
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid escalation request: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO escalation_requests (id, ticket_id, requester_id, reason, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.TicketID, nullStringPtr(e.RequesterID), e.Reason, e.Status, FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation request: %w", err)
	}

	e.CreatedAt = now
	return nil
}

// GetByID retrieves an escalation request by ID with its ticket's title and
// team populated.
func (r *EscalationRepo) GetByID(ctx context.Context, id string) (*models.EscalationRequest, error) {
	query := `
		SELECT ` + escalationColumns + `, t.title, t.team_id, COALESCE(u.name, '')
		FROM escalation_requests e
		JOIN tickets t ON t.id = e.ticket_id
		LEFT JOIN users u ON u.id = e.requester_id
		WHERE e.id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)

	e, err := scanEscalation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan escalation request: %w", err)
	}
	return e, nil
}

// HasBlocking reports whether the ticket already carries a PENDING or
// APPROVED escalation. Rejected requests do not block a new one.
func (r *EscalationRepo) HasBlocking(ctx context.Context, ticketID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM escalation_requests
		WHERE ticket_id = ? AND status IN ('PENDING', 'APPROVED')
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, ticketID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check escalations: %w", err)
	}
	return count > 0, nil
}

// HasPending reports whether the ticket carries an escalation still awaiting
// a manager's decision.
func (r *EscalationRepo) HasPending(ctx context.Context, ticketID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM escalation_requests
		WHERE ticket_id = ? AND status = 'PENDING'
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, ticketID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check pending escalations: %w", err)
	}
	return count > 0, nil
}

// Review records a manager's decision on a pending request. Only a PENDING
// row is updated, so a concurrent double review resolves to one winner.
func (r *EscalationRepo) Review(ctx context.Context, id, reviewerID string, status models.EscalationStatus, comment string) error {
	query := `
		UPDATE escalation_requests
		SET status = ?, reviewer_id = ?, review_comment = ?, reviewed_at = ?
		WHERE id = ? AND status = 'PENDING'
	`
	result, err := r.db.ExecContext(ctx, query, status, reviewerID, nullString(comment), FormatTime(NowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to review escalation: %w", err)
	}
	return requireRowAffected(result, "pending escalation request")
}

// List retrieves escalation requests matching the filter, newest first.
func (r *EscalationRepo) List(ctx context.Context, filter EscalationFilter) ([]*models.EscalationRequest, error) {
	query := `
		SELECT ` + escalationColumns + `, t.title, t.team_id, COALESCE(u.name, '')
		FROM escalation_requests e
		JOIN tickets t ON t.id = e.ticket_id
		LEFT JOIN users u ON u.id = e.requester_id
		WHERE 1 = 1
	`
	where, args := buildEscalationWhere(filter)
	query += where
	query += " ORDER BY e.created_at DESC, e.id"

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
		return nil, fmt.Errorf("failed to list escalation requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.EscalationRequest
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation request: %w", err)
		}
		requests = append(requests, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation requests: %w", err)
	}
	return requests, nil
}

// Count counts escalation requests matching the filter.
func (r *EscalationRepo) Count(ctx context.Context, filter EscalationFilter) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM escalation_requests e
		JOIN tickets t ON t.id = e.ticket_id
		WHERE 1 = 1
	`
	where, args := buildEscalationWhere(filter)
	query += where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count escalation requests: %w", err)
	}
	return count, nil
}

func buildEscalationWhere(filter EscalationFilter) (string, []interface{}) {
	var where string
	args := []interface{}{}

	if filter.Status != nil {
		where += " AND e.status = ?"
		args = append(args, *filter.Status)
	}
	if filter.TicketID != nil {
		where += " AND e.ticket_id = ?"
		args = append(args, *filter.TicketID)
	}
	if filter.RequesterID != nil {
		where += " AND e.requester_id = ?"
		args = append(args, *filter.RequesterID)
	}
	if filter.TeamID != nil {
		where += " AND t.team_id = ?"
		args = append(args, *filter.TeamID)
	}
	return where, args
}

func scanEscalation(row rowScanner) (*models.EscalationRequest, error) {
	var e models.EscalationRequest
	var requesterID, reviewerID, reviewComment, teamID sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&e.ID, &e.TicketID, &requesterID, &reviewerID, &e.Reason, &e.Status,
		&reviewComment, &e.CreatedAt, &reviewedAt,
		&e.TicketTitle, &teamID, &e.RequesterName,
	)
	if err != nil {
		return nil, err
	}

	if requesterID.Valid {
		e.RequesterID = &requesterID.String
	}
	if reviewerID.Valid {
		e.ReviewerID = &reviewerID.String
	}
	e.ReviewComment = reviewComment.String
	if reviewedAt.Valid {
		e.ReviewedAt = &reviewedAt.Time
	}
	if teamID.Valid {
		e.TicketTeamID = &teamID.String
	}
	return &e, nil
}
