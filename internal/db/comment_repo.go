package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// CommentRepo provides database operations for ticket comments.
type CommentRepo struct {
	db DBTX
}

// NewCommentRepo creates a new CommentRepo.
func NewCommentRepo(db DBTX) *CommentRepo {
	return &CommentRepo{db: db}
}

// Create creates a new comment.
func (r *CommentRepo) Create(ctx context.Context, c *models.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid comment: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO comments (id, ticket_id, user_id, content, is_internal, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.TicketID, nullStringPtr(c.UserID), c.Content, boolToInt(c.IsInternal), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	c.CreatedAt = now
	return nil
}

// GetByID retrieves a comment by ID.
func (r *CommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `
		SELECT c.id, c.ticket_id, c.user_id, c.content, c.is_internal, c.created_at,
			COALESCE(u.name, ''), COALESCE(u.role, '')
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.id = ?
	`
	row := r.db.QueryRowContext(ctx, query, id)

	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	return c, nil
}

// ListByTicket returns a ticket's comments, oldest first, with the author's
// name and role populated. When includeInternal is false, internal comments
// are omitted.
func (r *CommentRepo) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]*models.Comment, error) {
	query := `
		SELECT c.id, c.ticket_id, c.user_id, c.content, c.is_internal, c.created_at,
			COALESCE(u.name, ''), COALESCE(u.role, '')
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.ticket_id = ?
	`
	if !includeInternal {
		query += ` AND c.is_internal = 0`
	}
	query += ` ORDER BY c.created_at, c.id`

	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var c models.Comment
	var userID sql.NullString
	var isInternal int
	var authorRole string

	err := row.Scan(&c.ID, &c.TicketID, &userID, &c.Content, &isInternal, &c.CreatedAt, &c.AuthorName, &authorRole)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		c.UserID = &userID.String
	}
	c.IsInternal = isInternal != 0
	c.AuthorRole = models.Role(authorRole)
	return &c, nil
}
