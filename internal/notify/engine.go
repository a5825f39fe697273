// Package notify fans domain events out to per-user notification records.
//
// Every event function is best-effort: it runs after the primary transaction
// has committed, writes notifications in its own statements, and suppresses
// its errors behind a warn-level log line. A failed fan-out never fails the
// action that triggered it.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
)

// previewLimit caps ticket-title and comment previews embedded in messages.
const previewLimit = 50

// Engine computes recipient sets for domain events and writes one
// notification per recipient.
type Engine struct {
	d   *db.DB
	log *zap.Logger
	sms Sender
}

// NewEngine creates a notification engine. sms may be nil to disable SMS
// delivery entirely.
func NewEngine(d *db.DB, log *zap.Logger, sms Sender) *Engine {
	return &Engine{d: d, log: log, sms: sms}
}

// TicketCreated notifies the reporter that their report was filed.
func (e *Engine) TicketCreated(ctx context.Context, ticket *models.Ticket) {
	e.write(ctx, ticket.ReporterID, models.NotifyTicketCreated, "Report received",
		fmt.Sprintf("Your report %q has been received.", preview(ticket.Title)), &ticket.ID)
}

// NewTicketForTeam notifies every support member of the routed team,
// excluding the reporter.
func (e *Engine) NewTicketForTeam(ctx context.Context, ticket *models.Ticket, teamID string) {
	members, err := db.NewUserRepo(e.d).ListTeamSupport(ctx, teamID)
	if err != nil {
		e.warn("new ticket for team", ticket.ID, err)
		return
	}
	msg := fmt.Sprintf("A new report %q was assigned to your team.", preview(ticket.Title))
	for _, m := range members {
		if m.ID == ticket.ReporterID {
			continue
		}
		e.write(ctx, m.ID, models.NotifyNewTicketForTeam, "New team report", msg, &ticket.ID)
	}
}

// TicketStatusChanged notifies the reporter (unless they are the actor) and
// all followers except the reporter and the actor. The reporter additionally
// gets an SMS when a sender is configured.
func (e *Engine) TicketStatusChanged(ctx context.Context, ticket *models.Ticket, actorID string) {
	msg := fmt.Sprintf("Report %q is now %s.", preview(ticket.Title), ticket.Status)

	if ticket.ReporterID != actorID {
		e.write(ctx, ticket.ReporterID, models.NotifyTicketStatusChanged, "Report status changed", msg, &ticket.ID)
		e.sendSMS(ctx, ticket.ReporterID, msg)
	}

	followers, err := db.NewTicketRepo(e.d).ListFollowerIDs(ctx, ticket.ID)
	if err != nil {
		e.warn("status change fan-out", ticket.ID, err)
		return
	}
	for _, id := range followers {
		if id == ticket.ReporterID || id == actorID {
			continue
		}
		e.write(ctx, id, models.NotifyTicketStatusChanged, "Report status changed", msg, &ticket.ID)
	}
}

// TicketFollowed notifies the reporter when someone else starts following.
func (e *Engine) TicketFollowed(ctx context.Context, ticket *models.Ticket, followerID, followerName string) {
	if followerID == ticket.ReporterID {
		return
	}
	e.write(ctx, ticket.ReporterID, models.NotifyTicketFollowed, "New follower",
		fmt.Sprintf("%s is now following your report %q.", followerName, preview(ticket.Title)), &ticket.ID)
}

// CommentAdded notifies the reporter, followers and the assigned team's
// support members, deduplicated, excluding the author. Internal comments
// produce no notifications at all.
func (e *Engine) CommentAdded(ctx context.Context, ticket *models.Ticket, comment *models.Comment) {
	if comment.IsInternal {
		return
	}

	authorID := ""
	if comment.UserID != nil {
		authorID = *comment.UserID
	}
	msg := fmt.Sprintf("New comment on %q: %s", preview(ticket.Title), preview(comment.Content))

	notified := map[string]bool{authorID: true}
	send := func(userID string) {
		if notified[userID] {
			return
		}
		notified[userID] = true
		e.write(ctx, userID, models.NotifyCommentAdded, "New comment", msg, &ticket.ID)
	}

	send(ticket.ReporterID)

	followers, err := db.NewTicketRepo(e.d).ListFollowerIDs(ctx, ticket.ID)
	if err != nil {
		e.warn("comment fan-out", ticket.ID, err)
	} else {
		for _, id := range followers {
			send(id)
		}
	}

	if ticket.TeamID != nil {
		members, err := db.NewUserRepo(e.d).ListTeamSupport(ctx, *ticket.TeamID)
		if err != nil {
			e.warn("comment team fan-out", ticket.ID, err)
			return
		}
		for _, m := range members {
			send(m.ID)
		}
	}
}

// TicketAssigned notifies every support member of the newly assigned team,
// excluding the reporter.
func (e *Engine) TicketAssigned(ctx context.Context, ticket *models.Ticket, teamID string) {
	members, err := db.NewUserRepo(e.d).ListTeamSupport(ctx, teamID)
	if err != nil {
		e.warn("assignment fan-out", ticket.ID, err)
		return
	}
	msg := fmt.Sprintf("Report %q was assigned to your team.", preview(ticket.Title))
	for _, m := range members {
		if m.ID == ticket.ReporterID {
			continue
		}
		e.write(ctx, m.ID, models.NotifyTicketAssigned, "Report assigned", msg, &ticket.ID)
	}
}

// EscalationRequested notifies all managers that a review is waiting.
func (e *Engine) EscalationRequested(ctx context.Context, ticket *models.Ticket, reason string) {
	managers, err := db.NewUserRepo(e.d).ListManagers(ctx)
	if err != nil {
		e.warn("escalation fan-out", ticket.ID, err)
		return
	}
	msg := fmt.Sprintf("Report %q was escalated: %s", preview(ticket.Title), preview(reason))
	for _, m := range managers {
		e.write(ctx, m.ID, models.NotifyEscalationRequested, "Escalation requested", msg, &ticket.ID)
	}
}

// EscalationDecided notifies the reporter of the manager's decision.
func (e *Engine) EscalationDecided(ctx context.Context, ticket *models.Ticket, approved bool) {
	typ := models.NotifyEscalationApproved
	title := "Escalation approved"
	verdict := "approved"
	if !approved {
		typ = models.NotifyEscalationRejected
		title = "Escalation rejected"
		verdict = "rejected"
	}
	e.write(ctx, ticket.ReporterID, typ, title,
		fmt.Sprintf("The escalation on your report %q was %s.", preview(ticket.Title), verdict), &ticket.ID)
}

func (e *Engine) write(ctx context.Context, userID string, typ models.NotificationType, title, message string, ticketID *string) {
	n := &models.Notification{
		UserID:   userID,
		TicketID: ticketID,
		Type:     typ,
		Title:    title,
		Message:  message,
	}
	if err := db.NewNotificationRepo(e.d).Create(ctx, n); err != nil {
		e.log.Warn("notification write failed",
			zap.String("user_id", userID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

func (e *Engine) sendSMS(ctx context.Context, userID, message string) {
	if e.sms == nil {
		return
	}
	user, err := db.NewUserRepo(e.d).GetByID(ctx, userID)
	if err != nil || user == nil {
		e.warn("sms recipient lookup", userID, err)
		return
	}
	if err := e.sms.Send(ctx, user.Phone, message); err != nil {
		e.log.Warn("sms delivery failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (e *Engine) warn(op, id string, err error) {
	e.log.Warn("notification fan-out failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
}

// preview truncates s to the message preview limit, rune-safe.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit-3]) + "..."
}
