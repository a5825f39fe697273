package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// NotificationRepo provides database operations for in-app notifications.
type NotificationRepo struct {
	db DBTX
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(db DBTX) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create creates a new notification.
func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO notifications (id, user_id, ticket_id, type, title, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, nullStringPtr(n.TicketID), n.Type, n.Title, n.Message, FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.CreatedAt = now
	return nil
}

// ListByUser returns a user's notifications, newest first. When unreadOnly is
// true, read notifications are omitted.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, ticket_id, type, title, message, is_read, read_at, created_at
		FROM notifications WHERE user_id = ?
	`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var ticketID sql.NullString
		var isRead int
		var readAt sql.NullTime

		err := rows.Scan(&n.ID, &n.UserID, &ticketID, &n.Type, &n.Title, &n.Message, &isRead, &readAt, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if ticketID.Valid {
			n.TicketID = &ticketID.String
		}
		n.IsRead = isRead != 0
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// CountByUser counts a user's notifications.
func (r *NotificationRepo) CountByUser(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a single notification as read. The user id guards against
// marking someone else's notification.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	query := `UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, query, FormatTime(NowUTC()), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireRowAffected(result, "notification")
}

// MarkAllRead marks all of a user's unread notifications as read and returns
// the number updated.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	query := `UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0`
	result, err := r.db.ExecContext(ctx, query, FormatTime(NowUTC()), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
