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
	"github.com/akorkmaz/civita/internal/state"
)

// EscalationService implements the manager-review workflow. Opening an
// escalation parks the ticket in ESCALATED; the decision returns it to
// IN_PROGRESS either way.
type EscalationService struct {
	d        *db.DB
	log      *zap.Logger
	machine  *state.Machine
	notifier *notify.Engine
}

// NewEscalationService creates an EscalationService.
func NewEscalationService(d *db.DB, log *zap.Logger, notifier *notify.Engine) *EscalationService {
	return &EscalationService{d: d, log: log, machine: state.NewMachine(), notifier: notifier}
}

// Create opens an escalation on a ticket. Only support members of the
// ticket's own team may escalate, and only when no PENDING or APPROVED
// escalation already exists. Two concurrent attempts resolve to one winner:
// the loser trips either the in-transaction check or the unique index.
func (s *EscalationService) Create(ctx context.Context, ticketID, reason string, p auth.Principal) (*models.EscalationRequest, error) {
	var (
		escalation *models.EscalationRequest
		ticket     *models.Ticket
	)
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		tickets := db.NewTicketRepo(tx)
		var err error
		ticket, err = tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}
		if ticket.TeamID == nil {
			return apperr.BadRequest("unassigned tickets cannot be escalated")
		}
		if p.TeamID == nil || *p.TeamID != *ticket.TeamID {
			return apperr.Forbidden("you can only escalate tickets assigned to your team")
		}

		escalations := db.NewEscalationRepo(tx)
		blocking, err := escalations.HasBlocking(ctx, ticketID)
		if err != nil {
			return err
		}
		if blocking {
			return apperr.Conflict("ticket already has an open escalation")
		}

		if err := s.machine.CanTransition(ticket.Status, models.StatusEscalated); err != nil {
			return err
		}

		escalation = &models.EscalationRequest{
			TicketID:    ticketID,
			RequesterID: &p.UserID,
			Reason:      reason,
			Status:      models.EscalationPending,
		}
		if err := escalations.Create(ctx, escalation); err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("ticket already has an open escalation")
			}
			return err
		}

		oldStatus := ticket.Status
		ticket.Status = models.StatusEscalated
		if err := tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return tickets.AddStatusLog(ctx, &models.StatusLog{
			TicketID:    ticketID,
			OldStatus:   &oldStatus,
			NewStatus:   models.StatusEscalated,
			ChangedByID: &p.UserID,
			Comment:     "Escalation requested: " + reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.EscalationRequested(ctx, ticket, reason)
	return escalation, nil
}

// Review decides a pending escalation. Either decision moves a still-ESCALATED
// ticket back to IN_PROGRESS with a synthesized status-log comment.
func (s *EscalationService) Review(ctx context.Context, escalationID string, approve bool, comment string, p auth.Principal) (*models.EscalationRequest, error) {
	var (
		escalation *models.EscalationRequest
		ticket     *models.Ticket
	)
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		escalations := db.NewEscalationRepo(tx)
		var err error
		escalation, err = escalations.GetByID(ctx, escalationID)
		if err != nil {
			return err
		}
		if escalation == nil {
			return apperr.NotFound("escalation request not found")
		}
		if escalation.Status != models.EscalationPending {
			return apperr.Conflict("escalation request has already been reviewed")
		}

		status := models.EscalationApproved
		if !approve {
			status = models.EscalationRejected
		}
		if err := escalations.Review(ctx, escalationID, p.UserID, status, comment); err != nil {
			return err
		}
		escalation.Status = status
		escalation.ReviewerID = &p.UserID
		escalation.ReviewComment = comment

		tickets := db.NewTicketRepo(tx)
		ticket, err = tickets.GetByID(ctx, escalation.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}

		// The decision is recorded regardless of where the ticket has moved
		// in the meantime; only a ticket still in ESCALATED transitions back.
		if ticket.Status != models.StatusEscalated {
			return nil
		}

		oldStatus := ticket.Status
		ticket.Status = models.StatusInProgress
		if err := tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return tickets.AddStatusLog(ctx, &models.StatusLog{
			TicketID:    ticket.ID,
			OldStatus:   &oldStatus,
			NewStatus:   models.StatusInProgress,
			ChangedByID: &p.UserID,
			Comment:     reviewLogComment(approve, comment),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.EscalationDecided(ctx, ticket, approve)
	return escalation, nil
}

// EscalationListQuery filters paginated escalation lists.
type EscalationListQuery struct {
	Status   *models.EscalationStatus
	Page     int
	PageSize int
}

// List returns escalations visible to the principal: everything for managers,
// own-team only for support. A teamless support principal sees nothing.
func (s *EscalationService) List(ctx context.Context, q EscalationListQuery, p auth.Principal) ([]*models.EscalationRequest, int, error) {
	filter := db.EscalationFilter{Status: q.Status}
	if p.Role == models.RoleSupport {
		if p.TeamID == nil {
			return nil, 0, nil
		}
		filter.TeamID = p.TeamID
	}
	filter.Limit, filter.Offset = pageBounds(q.Page, q.PageSize, MaxPageSize)

	escalations := db.NewEscalationRepo(s.d)
	total, err := escalations.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := escalations.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func reviewLogComment(approve bool, comment string) string {
	verdict := "Escalation approved"
	if !approve {
		verdict = "Escalation rejected"
	}
	if comment == "" {
		return verdict
	}
	return verdict + ": " + comment
}

// isUniqueViolation recognizes the sqlite unique-constraint signature so the
// service can remap it to Conflict.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
