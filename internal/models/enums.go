// Package models defines the domain models for civita.
package models

// Role represents a user's role in the system.
// - CITIZEN: files reports and follows their progress
// - SUPPORT: works tickets assigned to their team
// - MANAGER: assigns teams, reviews escalations, administers the system
type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleSupport Role = "SUPPORT"
	RoleManager Role = "MANAGER"
)

// IsValid returns true if the role is a valid user role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleSupport, RoleManager:
		return true
	}
	return false
}

// IsStaff returns true for roles that work tickets rather than file them.
func (r Role) IsStaff() bool {
	return r == RoleSupport || r == RoleManager
}

// TicketStatus represents the state of a ticket in its lifecycle.
type TicketStatus string

const (
	StatusNew        TicketStatus = "NEW"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
	StatusEscalated  TicketStatus = "ESCALATED"
)

// IsValid returns true if the status is a valid ticket status.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved, StatusClosed, StatusEscalated:
		return true
	}
	return false
}

// IsActive returns true if the ticket is still open for field work.
// Active tickets are the only ones surfaced by the nearby search.
func (s TicketStatus) IsActive() bool {
	return s == StatusNew || s == StatusInProgress
}

// IsSettled returns true once the reported problem has been dealt with.
// Feedback may only be left on settled tickets.
func (s TicketStatus) IsSettled() bool {
	return s == StatusResolved || s == StatusClosed
}

// EscalationStatus represents the review state of an escalation request.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "PENDING"
	EscalationApproved EscalationStatus = "APPROVED"
	EscalationRejected EscalationStatus = "REJECTED"
)

// IsValid returns true if the escalation status is valid.
func (s EscalationStatus) IsValid() bool {
	switch s {
	case EscalationPending, EscalationApproved, EscalationRejected:
		return true
	}
	return false
}

// Blocks returns true if an escalation in this status prevents a new
// escalation from being opened on the same ticket.
func (s EscalationStatus) Blocks() bool {
	return s == EscalationPending || s == EscalationApproved
}

// NotificationType identifies the domain event behind a notification record.
type NotificationType string

const (
	NotifyTicketCreated       NotificationType = "TICKET_CREATED"
	NotifyTicketStatusChanged NotificationType = "TICKET_STATUS_CHANGED"
	NotifyTicketFollowed      NotificationType = "TICKET_FOLLOWED"
	NotifyCommentAdded        NotificationType = "COMMENT_ADDED"
	NotifyTicketAssigned      NotificationType = "TICKET_ASSIGNED"
	NotifyEscalationRequested NotificationType = "ESCALATION_REQUESTED"
	NotifyEscalationApproved  NotificationType = "ESCALATION_APPROVED"
	NotifyEscalationRejected  NotificationType = "ESCALATION_REJECTED"
	NotifyNewTicketForTeam    NotificationType = "NEW_TICKET_FOR_TEAM"
)

// IsValid returns true if the notification type is valid.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotifyTicketCreated, NotifyTicketStatusChanged, NotifyTicketFollowed,
		NotifyCommentAdded, NotifyTicketAssigned, NotifyEscalationRequested,
		NotifyEscalationApproved, NotifyEscalationRejected, NotifyNewTicketForTeam:
		return true
	}
	return false
}
