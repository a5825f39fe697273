package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/models"
)

func TestCanTransition(t *testing.T) {
	m := NewMachine()

	allowed := [][2]models.TicketStatus{
		{models.StatusNew, models.StatusInProgress},
		{models.StatusNew, models.StatusEscalated},
		{models.StatusInProgress, models.StatusResolved},
		{models.StatusInProgress, models.StatusEscalated},
		{models.StatusEscalated, models.StatusInProgress},
		{models.StatusResolved, models.StatusClosed},
		{models.StatusResolved, models.StatusInProgress},
		{models.StatusClosed, models.StatusInProgress},
	}
	for _, pair := range allowed {
		assert.NoError(t, m.CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	denied := [][2]models.TicketStatus{
		{models.StatusClosed, models.StatusNew},
		{models.StatusResolved, models.StatusNew},
		{models.StatusNew, models.StatusResolved},
		{models.StatusNew, models.StatusClosed},
		{models.StatusEscalated, models.StatusResolved},
		{models.StatusEscalated, models.StatusClosed},
		{models.StatusClosed, models.StatusEscalated},
	}
	for _, pair := range denied {
		err := m.CanTransition(pair[0], pair[1])
		require.Error(t, err, "%s -> %s", pair[0], pair[1])
		assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))
	}
}

func TestCanTransitionRejectsSelfAndGarbage(t *testing.T) {
	m := NewMachine()

	err := m.CanTransition(models.StatusNew, models.StatusNew)
	assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))

	err = m.CanTransition(models.StatusNew, models.TicketStatus("BOGUS"))
	assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))
}

func TestGetValidTransitions(t *testing.T) {
	m := NewMachine()

	froms := map[models.TicketStatus]int{
		models.StatusNew:        2,
		models.StatusInProgress: 2,
		models.StatusEscalated:  1,
		models.StatusResolved:   2,
		models.StatusClosed:     1,
	}
	for from, want := range froms {
		assert.Len(t, m.GetValidTransitions(from), want, "from %s", from)
	}
}

func TestEntersResolved(t *testing.T) {
	assert.True(t, EntersResolved(models.StatusInProgress, models.StatusResolved))
	assert.False(t, EntersResolved(models.StatusResolved, models.StatusClosed))
	assert.False(t, EntersResolved(models.StatusResolved, models.StatusResolved))
}
