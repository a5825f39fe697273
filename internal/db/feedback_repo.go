package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// FeedbackRepo provides database operations for ticket feedback. Each ticket
// carries at most one feedback row, enforced by a unique constraint.
type FeedbackRepo struct {
	db DBTX
}

// NewFeedbackRepo creates a new FeedbackRepo.
func NewFeedbackRepo(db DBTX) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

// Create creates feedback for a ticket.
func (r *FeedbackRepo) Create(ctx context.Context, f *models.Feedback) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO feedback (id, ticket_id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.TicketID, nullStringPtr(f.UserID), f.Rating, nullString(f.Comment), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	f.CreatedAt = now
	return nil
}

// Update replaces the rating and comment of existing feedback.
func (r *FeedbackRepo) Update(ctx context.Context, f *models.Feedback) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}

	query := `UPDATE feedback SET rating = ?, comment = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, f.Rating, nullString(f.Comment), FormatTime(NowUTC()), f.ID)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	return requireRowAffected(result, "feedback")
}

// GetByTicket retrieves the feedback for a ticket, or nil if none exists.
func (r *FeedbackRepo) GetByTicket(ctx context.Context, ticketID string) (*models.Feedback, error) {
	query := `
		SELECT id, ticket_id, user_id, rating, comment, created_at, updated_at
		FROM feedback WHERE ticket_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, ticketID)

	var f models.Feedback
	var userID, comment sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&f.ID, &f.TicketID, &userID, &f.Rating, &comment, &f.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}

	if userID.Valid {
		f.UserID = &userID.String
	}
	f.Comment = comment.String
	if updatedAt.Valid {
		f.UpdatedAt = &updatedAt.Time
	}
	return &f, nil
}

// AverageRatingByTeam returns per-team average ratings for resolved work.
// Teams with no rated tickets are absent from the map.
func (r *FeedbackRepo) AverageRatingByTeam(ctx context.Context) (map[string]float64, error) {
	query := `
		SELECT t.team_id, AVG(f.rating)
		FROM feedback f
		JOIN tickets t ON t.id = f.ticket_id
		WHERE t.team_id IS NOT NULL AND t.deleted_at IS NULL
		GROUP BY t.team_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query team ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]float64)
	for rows.Next() {
		var teamID string
		var avg float64
		if err := rows.Scan(&teamID, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan team rating: %w", err)
		}
		ratings[teamID] = avg
	}
	return ratings, rows.Err()
}
