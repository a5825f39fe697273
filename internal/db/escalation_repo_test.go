package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorkmaz/civita/internal/models"
)

func seedEscalation(t *testing.T, d *DB, ticketID, requesterID string) *models.EscalationRequest {
	t.Helper()
	e := &models.EscalationRequest{
		TicketID:    ticketID,
		RequesterID: &requesterID,
		Reason:      "needs contractor sign-off",
	}
	require.NoError(t, NewEscalationRepo(d).Create(context.Background(), e))
	return e
}

func TestEscalationRepoSecondPendingRejected(t *testing.T) {
	d := NewTestDB(t)
	defer d.Close()
	ctx := context.Background()

	reporter := seedUser(t, d, models.RoleCitizen, nil)
	staff := seedUser(t, d, models.RoleSupport, nil)
	cat := seedCategory(t, d, "Roads")
	tk := seedTicket(t, d, reporter, cat, seedLocation(t, d, 41.0, 29.0, ""), nil)

	seedEscalation(t, d, tk.ID, staff.ID)

	// The partial unique index stops a second pending request even if the
	// service-level check raced past it.
	err := NewEscalationRepo(d).Create(ctx, &models.EscalationRequest{
		TicketID:    tk.ID,
		RequesterID: &staff.ID,
		Reason:      "duplicate attempt",
	})
	assert.Error(t, err)
}

func TestEscalationRepoHasBlocking(t *testing.T) {
	d := NewTestDB(t)
	defer d.Close()
	ctx := context.Background()

	reporter := seedUser(t, d, models.RoleCitizen, nil)
	staff := seedUser(t, d, models.RoleSupport, nil)
	manager := seedUser(t, d, models.RoleManager, nil)
	cat := seedCategory(t, d, "Roads")
	tk := seedTicket(t, d, reporter, cat, seedLocation(t, d, 41.0, 29.0, ""), nil)

	repo := NewEscalationRepo(d)

	blocking, err := repo.HasBlocking(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, blocking)

	e := seedEscalation(t, d, tk.ID, staff.ID)
	blocking, err = repo.HasBlocking(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, blocking)

	// A rejected request stops blocking; an approved one keeps blocking.
	require.NoError(t, repo.Review(ctx, e.ID, manager.ID, models.EscalationRejected, "not warranted"))
	blocking, err = repo.HasBlocking(ctx, tk.ID)
	require.NoError(t, err)
	assert.False(t, blocking)

	e2 := seedEscalation(t, d, tk.ID, staff.ID)
	require.NoError(t, repo.Review(ctx, e2.ID, manager.ID, models.EscalationApproved, ""))
	blocking, err = repo.HasBlocking(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, blocking)
}

func TestEscalationRepoReviewOnlyPending(t *testing.T) {
	d := NewTestDB(t)
	defer d.Close()
	ctx := context.Background()

	reporter := seedUser(t, d, models.RoleCitizen, nil)
	staff := seedUser(t, d, models.RoleSupport, nil)
	manager := seedUser(t, d, models.RoleManager, nil)
	cat := seedCategory(t, d, "Roads")
	tk := seedTicket(t, d, reporter, cat, seedLocation(t, d, 41.0, 29.0, ""), nil)

	repo := NewEscalationRepo(d)
	e := seedEscalation(t, d, tk.ID, staff.ID)

	require.NoError(t, repo.Review(ctx, e.ID, manager.ID, models.EscalationApproved, "go ahead"))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.EscalationApproved, got.Status)
	assert.Equal(t, "go ahead", got.ReviewComment)
	require.NotNil(t, got.ReviewerID)
	assert.Equal(t, manager.ID, *got.ReviewerID)
	assert.NotNil(t, got.ReviewedAt)
	assert.Equal(t, tk.Title, got.TicketTitle)
	assert.Equal(t, staff.Name, got.RequesterName)

	// Second review of the same request fails.
	assert.Error(t, repo.Review(ctx, e.ID, manager.ID, models.EscalationRejected, "changed my mind"))
}

func TestEscalationRepoListFilters(t *testing.T) {
	d := NewTestDB(t)
	defer d.Close()
	ctx := context.Background()

	reporter := seedUser(t, d, models.RoleCitizen, nil)
	team := seedTeam(t, d, "Road Crew", false)
	staff := seedUser(t, d, models.RoleSupport, &team.ID)
	cat := seedCategory(t, d, "Roads")

	t1 := seedTicket(t, d, reporter, cat, seedLocation(t, d, 41.0, 29.0, ""), &team.ID)
	t2 := seedTicket(t, d, reporter, cat, seedLocation(t, d, 41.0, 29.0, ""), nil)

	seedEscalation(t, d, t1.ID, staff.ID)
	seedEscalation(t, d, t2.ID, staff.ID)

	repo := NewEscalationRepo(d)

	pending := models.EscalationPending
	all, err := repo.List(ctx, EscalationFilter{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byTeam, err := repo.List(ctx, EscalationFilter{TeamID: &team.ID})
	require.NoError(t, err)
	require.Len(t, byTeam, 1)
	assert.Equal(t, t1.ID, byTeam[0].TicketID)

	count, err := repo.Count(ctx, EscalationFilter{RequesterID: &staff.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
