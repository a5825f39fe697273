package models

import (
	"fmt"
	"time"
)

// Comment is a message on a ticket. Internal comments are staff-only and are
// never shown to citizens, nor referenced in citizen notifications.
type Comment struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UserID     *string   `json:"user_id,omitempty"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`

	// Computed fields
	AuthorName string `json:"author_name,omitempty"`
	AuthorRole Role   `json:"author_role,omitempty"`
}

// Validate validates the comment fields.
func (c *Comment) Validate() error {
	if c.TicketID == "" {
		return fmt.Errorf("ticket_id is required")
	}
	if c.Content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	return nil
}

// Feedback is the reporter's rating of how their ticket was handled.
// At most one per ticket, and only once the ticket is resolved or closed.
type Feedback struct {
	ID        string     `json:"id"`
	TicketID  string     `json:"ticket_id"`
	UserID    *string    `json:"user_id,omitempty"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Validate validates the feedback fields.
func (f *Feedback) Validate() error {
	if f.TicketID == "" {
		return fmt.Errorf("ticket_id is required")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

// EscalationRequest parks a ticket in ESCALATED until a manager decides.
// A ticket may accumulate rejected escalations, but only one PENDING or
// APPROVED escalation can exist at a time.
type EscalationRequest struct {
	ID            string           `json:"id"`
	TicketID      string           `json:"ticket_id"`
	RequesterID   *string          `json:"requester_id,omitempty"`
	ReviewerID    *string          `json:"reviewer_id,omitempty"`
	Reason        string           `json:"reason"`
	Status        EscalationStatus `json:"status"`
	ReviewComment string           `json:"review_comment,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ReviewedAt    *time.Time       `json:"reviewed_at,omitempty"`

	// Computed fields
	TicketTitle   string  `json:"ticket_title,omitempty"`
	TicketTeamID  *string `json:"-"`
	RequesterName string  `json:"requester_name,omitempty"`
}

// Validate validates the escalation request fields.
func (e *EscalationRequest) Validate() error {
	if e.TicketID == "" {
		return fmt.Errorf("ticket_id is required")
	}
	if e.Reason == "" {
		return fmt.Errorf("reason cannot be empty")
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid escalation status: %s", e.Status)
	}
	return nil
}

// Notification is a per-user record of a domain event. Writes are best-effort
// and happen outside the primary transaction.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	TicketID  *string          `json:"ticket_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Validate validates the notification fields.
func (n *Notification) Validate() error {
	if n.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("invalid notification type: %s", n.Type)
	}
	if n.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	return nil
}
