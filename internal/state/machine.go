// Package state implements the ticket status state machine for civita.
package state

import (
	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/models"
)

// TransitionRule defines a valid status transition.
type TransitionRule struct {
	From        models.TicketStatus
	To          models.TicketStatus
	Description string
}

// validTransitions is the single source of truth for the ticket lifecycle.
//
//	NEW         → IN_PROGRESS, ESCALATED
//	IN_PROGRESS → RESOLVED, ESCALATED
//	ESCALATED   → IN_PROGRESS
//	RESOLVED    → CLOSED, IN_PROGRESS (reopen)
//	CLOSED      → IN_PROGRESS (reopen)
var validTransitions = []TransitionRule{
	{models.StatusNew, models.StatusInProgress, "Team started working the report"},
	{models.StatusNew, models.StatusEscalated, "Escalated before work began"},
	{models.StatusInProgress, models.StatusResolved, "Problem fixed in the field"},
	{models.StatusInProgress, models.StatusEscalated, "Escalated for manager review"},
	{models.StatusEscalated, models.StatusInProgress, "Escalation decided, work resumes"},
	{models.StatusResolved, models.StatusClosed, "Resolution confirmed"},
	{models.StatusResolved, models.StatusInProgress, "Reopened after resolution"},
	{models.StatusClosed, models.StatusInProgress, "Reopened after close"},
}

// transitionRuleMap provides fast lookup of transition rules.
var transitionRuleMap map[string]*TransitionRule

func init() {
	transitionRuleMap = make(map[string]*TransitionRule)
	for i := range validTransitions {
		rule := &validTransitions[i]
		transitionRuleMap[makeTransitionKey(rule.From, rule.To)] = rule
	}
}

func makeTransitionKey(from, to models.TicketStatus) string {
	return string(from) + "->" + string(to)
}

// Machine provides state machine operations for tickets.
type Machine struct{}

// NewMachine creates a new state machine instance.
func NewMachine() *Machine {
	return &Machine{}
}

// GetTransitionRule returns the rule for a transition, or nil if invalid.
func (m *Machine) GetTransitionRule(from, to models.TicketStatus) *TransitionRule {
	return transitionRuleMap[makeTransitionKey(from, to)]
}

// CanTransition checks whether from → to is a legal transition.
// It returns nil if the transition is allowed, or a BadRequest error if not.
func (m *Machine) CanTransition(from, to models.TicketStatus) error {
	if !to.IsValid() {
		return apperr.BadRequest("invalid status: %s", to)
	}
	if from == to {
		return apperr.BadRequest("ticket is already in status %s", to)
	}
	if m.GetTransitionRule(from, to) == nil {
		return apperr.BadRequest("invalid status transition from %s to %s", from, to)
	}
	return nil
}

// GetValidTransitions returns all valid transitions from the given status.
func (m *Machine) GetValidTransitions(from models.TicketStatus) []TransitionRule {
	var transitions []TransitionRule
	for _, rule := range validTransitions {
		if rule.From == from {
			transitions = append(transitions, rule)
		}
	}
	return transitions
}

// EntersResolved returns true if the transition sets the resolution timestamp.
// resolvedAt is written only on the first entry into RESOLVED; reopens never
// clear it.
func EntersResolved(from, to models.TicketStatus) bool {
	return to == models.StatusResolved && from != models.StatusResolved
}
