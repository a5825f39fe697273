package service

import (
	"context"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
)

// TicketDetail is the fully loaded ticket graph plus the viewer-dependent
// flags the clients render from.
type TicketDetail struct {
	*models.Ticket
	Photos      []*models.TicketPhoto       `json:"photos"`
	Comments    []*models.Comment           `json:"comments"`
	StatusLogs  []*models.StatusLog         `json:"status_logs"`
	Feedback    *models.Feedback            `json:"feedback,omitempty"`
	Escalations []*models.EscalationRequest `json:"escalations,omitempty"`

	IsFollowing bool `json:"is_following"`
	HasFeedback bool `json:"has_feedback"`
	// HasEscalation reports a PENDING or APPROVED escalation on the ticket.
	HasEscalation bool `json:"has_escalation"`
	// CanEscalate is true when the ticket has a team and no blocking
	// escalation exists.
	CanEscalate bool `json:"can_escalate"`
}

// Detail loads the ticket's complete graph in one pass. Citizens see only
// public comments and no escalation history.
func (s *TicketService) Detail(ctx context.Context, ticketID string, p auth.Principal) (*TicketDetail, error) {
	tickets := db.NewTicketRepo(s.d)
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperr.NotFound("ticket not found")
	}

	if ticket.Category, err = db.NewCategoryRepo(s.d).GetByID(ctx, ticket.CategoryID); err != nil {
		return nil, err
	}
	if ticket.Location, err = tickets.GetLocation(ctx, ticket.LocationID); err != nil {
		return nil, err
	}
	if ticket.Reporter, err = db.NewUserRepo(s.d).GetByID(ctx, ticket.ReporterID); err != nil {
		return nil, err
	}
	if ticket.TeamID != nil {
		if ticket.Team, err = db.NewTeamRepo(s.d).GetByID(ctx, *ticket.TeamID); err != nil {
			return nil, err
		}
	}

	detail := &TicketDetail{Ticket: ticket}

	if detail.Photos, err = tickets.ListPhotos(ctx, ticketID); err != nil {
		return nil, err
	}
	for _, photo := range detail.Photos {
		photo.URL = s.store.PublicURL(photo.ObjectKey)
	}

	if detail.Comments, err = db.NewCommentRepo(s.d).ListByTicket(ctx, ticketID, p.IsStaff()); err != nil {
		return nil, err
	}
	if detail.StatusLogs, err = tickets.ListStatusLogs(ctx, ticketID); err != nil {
		return nil, err
	}
	if detail.Feedback, err = db.NewFeedbackRepo(s.d).GetByTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	detail.HasFeedback = detail.Feedback != nil

	escalations, err := db.NewEscalationRepo(s.d).List(ctx, db.EscalationFilter{TicketID: &ticketID})
	if err != nil {
		return nil, err
	}
	if p.IsStaff() {
		detail.Escalations = escalations
	}
	for _, e := range escalations {
		if e.Status.Blocks() {
			detail.HasEscalation = true
			break
		}
	}
	detail.CanEscalate = ticket.TeamID != nil && !detail.HasEscalation

	if detail.IsFollowing, err = tickets.IsFollowing(ctx, ticketID, p.UserID); err != nil {
		return nil, err
	}
	return detail, nil
}
