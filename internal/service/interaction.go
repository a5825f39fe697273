package service

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/notify"
)

// CommentService adds and lists ticket comments. Internal comments are a
// staff-only channel: citizens can neither write nor read them.
type CommentService struct {
	d        *db.DB
	log      *zap.Logger
	notifier *notify.Engine
}

// NewCommentService creates a CommentService.
func NewCommentService(d *db.DB, log *zap.Logger, notifier *notify.Engine) *CommentService {
	return &CommentService{d: d, log: log, notifier: notifier}
}

// Add creates a comment on a ticket.
func (s *CommentService) Add(ctx context.Context, ticketID, content string, isInternal bool, p auth.Principal) (*models.Comment, error) {
	if isInternal && !p.IsStaff() {
		return nil, apperr.Forbidden("citizens cannot write internal comments")
	}

	var (
		comment *models.Comment
		ticket  *models.Ticket
	)
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		ticket, err = db.NewTicketRepo(tx).GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}

		comment = &models.Comment{
			TicketID:   ticketID,
			UserID:     &p.UserID,
			Content:    content,
			IsInternal: isInternal,
		}
		return db.NewCommentRepo(tx).Create(ctx, comment)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.CommentAdded(ctx, ticket, comment)
	return comment, nil
}

// List returns a ticket's comments, newest first. Citizens see only public
// comments.
func (s *CommentService) List(ctx context.Context, ticketID string, p auth.Principal) ([]*models.Comment, error) {
	ticket, err := db.NewTicketRepo(s.d).GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperr.NotFound("ticket not found")
	}

	comments, err := db.NewCommentRepo(s.d).ListByTicket(ctx, ticketID, p.IsStaff())
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(comments)-1; i < j; i, j = i+1, j-1 {
		comments[i], comments[j] = comments[j], comments[i]
	}
	return comments, nil
}

// FeedbackService records the reporter's rating of a settled ticket.
type FeedbackService struct {
	d   *db.DB
	log *zap.Logger
}

// NewFeedbackService creates a FeedbackService.
func NewFeedbackService(d *db.DB, log *zap.Logger) *FeedbackService {
	return &FeedbackService{d: d, log: log}
}

// Create records feedback. Only the reporter may leave it, only once, and
// only after the ticket is RESOLVED or CLOSED.
func (s *FeedbackService) Create(ctx context.Context, ticketID string, rating int, comment string, p auth.Principal) (*models.Feedback, error) {
	var feedback *models.Feedback
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		ticket, err := db.NewTicketRepo(tx).GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}
		if ticket.ReporterID != p.UserID {
			return apperr.Forbidden("only the reporter can leave feedback")
		}
		if !ticket.Status.IsSettled() {
			return apperr.Forbidden("feedback requires a resolved or closed ticket")
		}

		feedbacks := db.NewFeedbackRepo(tx)
		existing, err := feedbacks.GetByTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("feedback already exists for this ticket")
		}

		feedback = &models.Feedback{
			TicketID: ticketID,
			UserID:   &p.UserID,
			Rating:   rating,
			Comment:  comment,
		}
		if err := feedbacks.Create(ctx, feedback); err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("feedback already exists for this ticket")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return feedback, nil
}

// Get returns the feedback on a ticket, if any.
func (s *FeedbackService) Get(ctx context.Context, ticketID string) (*models.Feedback, error) {
	ticket, err := db.NewTicketRepo(s.d).GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperr.NotFound("ticket not found")
	}

	feedback, err := db.NewFeedbackRepo(s.d).GetByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if feedback == nil {
		return nil, apperr.NotFound("no feedback on this ticket")
	}
	return feedback, nil
}

// NotificationService lists and acknowledges a user's notifications.
type NotificationService struct {
	d *db.DB
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(d *db.DB) *NotificationService {
	return &NotificationService{d: d}
}

// List returns the principal's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, unreadOnly bool, page, pageSize int, p auth.Principal) ([]*models.Notification, int, error) {
	limit, offset := pageBounds(page, pageSize, MaxPageSize)

	repo := db.NewNotificationRepo(s.d)
	total, err := repo.CountByUser(ctx, p.UserID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListByUser(ctx, p.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkRead acknowledges one notification. A notification belonging to
// another user reads as absent.
func (s *NotificationService) MarkRead(ctx context.Context, id string, p auth.Principal) error {
	err := db.NewNotificationRepo(s.d).MarkRead(ctx, id, p.UserID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return apperr.NotFound("notification not found")
		}
		return err
	}
	return nil
}

// MarkAllRead acknowledges every unread notification and returns the count.
func (s *NotificationService) MarkAllRead(ctx context.Context, p auth.Principal) (int, error) {
	return db.NewNotificationRepo(s.d).MarkAllRead(ctx, p.UserID)
}
