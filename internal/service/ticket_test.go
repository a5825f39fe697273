package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
)

// Happy-path creation: routed team, reporter follows, first status log,
// reporter notified.
func TestTicketCreateLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	kadikoy := e.district(t, "Kadikoy", "Istanbul")
	crew := e.team(t, "Kadikoy Infrastructure", []string{infra.ID}, []string{kadikoy.ID})

	_, citizen := e.user(t, models.RoleCitizen, nil)
	tk := e.createTicket(t, citizen, infra.ID, "Kadikoy")

	assert.Equal(t, models.StatusNew, tk.Status)
	require.NotNil(t, tk.TeamID)
	assert.Equal(t, crew.ID, *tk.TeamID)

	tickets := db.NewTicketRepo(e.d)
	following, err := tickets.IsFollowing(ctx, tk.ID, citizen.UserID)
	require.NoError(t, err)
	assert.True(t, following)

	logs, err := tickets.ListStatusLogs(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].OldStatus)
	assert.Equal(t, models.StatusNew, logs[0].NewStatus)

	ns := e.unread(t, citizen.UserID)
	require.Len(t, ns, 1)
	assert.Equal(t, models.NotifyTicketCreated, ns[0].Type)
}

func TestTicketCreateNotifiesTeamSupport(t *testing.T) {
	e := newEnv(t)

	infra := e.category(t, "Infrastructure")
	crew := e.team(t, "Infra Crew", []string{infra.ID}, nil)
	support, _ := e.user(t, models.RoleSupport, &crew.ID)

	_, citizen := e.user(t, models.RoleCitizen, nil)
	e.createTicket(t, citizen, infra.ID, "")

	ns := e.unread(t, support.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, models.NotifyNewTicketForTeam, ns[0].Type)
}

func TestTicketCreateUnassignedWhenNoTeamMatches(t *testing.T) {
	e := newEnv(t)

	infra := e.category(t, "Infrastructure")
	_, citizen := e.user(t, models.RoleCitizen, nil)
	tk := e.createTicket(t, citizen, infra.ID, "Kadikoy")

	assert.Nil(t, tk.TeamID)
}

func TestTicketCreateRejectsInactiveCategory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cat := e.category(t, "Legacy")
	cat.IsActive = false
	require.NoError(t, db.NewCategoryRepo(e.d).Update(ctx, cat))

	_, citizen := e.user(t, models.RoleCitizen, nil)
	_, err := e.tickets.Create(ctx, CreateTicketInput{
		Title:       "Pothole on Main",
		Description: "Large pothole near #42 Main St, dangerous.",
		CategoryID:  cat.ID,
		Latitude:    41.0,
		Longitude:   29.0,
	}, citizen)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))
}

// Full status walk with resolvedAt monotonicity, and the state closure over
// the status-log trail.
func TestTicketStatusWalk(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, citizen := e.user(t, models.RoleCitizen, nil)
	_, support := e.user(t, models.RoleSupport, nil)
	tk := e.createTicket(t, citizen, infra.ID, "")

	tk, err := e.tickets.UpdateStatus(ctx, tk.ID, models.StatusInProgress, "", support)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, tk.Status)
	assert.Nil(t, tk.ResolvedAt)

	tk, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusResolved, "Filled", support)
	require.NoError(t, err)
	require.NotNil(t, tk.ResolvedAt)
	firstResolved := *tk.ResolvedAt

	tk, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusClosed, "", support)
	require.NoError(t, err)

	// CLOSED → NEW is outside the table.
	_, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusNew, "", support)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))

	// Reopen and re-resolve: resolvedAt keeps its first value.
	tk, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusInProgress, "reopened", support)
	require.NoError(t, err)
	require.NotNil(t, tk.ResolvedAt)

	tk, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusResolved, "", support)
	require.NoError(t, err)
	require.NotNil(t, tk.ResolvedAt)
	assert.True(t, tk.ResolvedAt.Equal(firstResolved))

	// The trail matches the ticket and every adjacent pair is legal.
	logs, err := db.NewTicketRepo(e.d).ListStatusLogs(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.Status, logs[len(logs)-1].NewStatus)
	for i := 1; i < len(logs); i++ {
		require.NotNil(t, logs[i].OldStatus)
		assert.Equal(t, logs[i-1].NewStatus, *logs[i].OldStatus)
		assert.NoError(t, e.tickets.machine.CanTransition(*logs[i].OldStatus, logs[i].NewStatus))
	}
}

func TestTicketStatusEscalatedGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	crew := e.team(t, "Infra Crew", []string{infra.ID}, nil)
	_, support := e.user(t, models.RoleSupport, &crew.ID)
	_, manager := e.user(t, models.RoleManager, nil)
	_, citizen := e.user(t, models.RoleCitizen, nil)
	tk := e.createTicket(t, citizen, infra.ID, "")

	// ESCALATED is never a direct target; it is entered by filing an
	// escalation request.
	_, err := e.tickets.UpdateStatus(ctx, tk.ID, models.StatusEscalated, "", support)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))

	got, err := db.NewTicketRepo(e.d).GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNew, got.Status)

	esc, err := e.escalations.Create(ctx, tk.ID, "needs budget sign-off", support)
	require.NoError(t, err)

	// The ticket stays parked until the request is decided.
	_, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusInProgress, "", support)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.GetKind(err))

	_, err = e.escalations.Review(ctx, esc.ID, false, "handle locally", manager)
	require.NoError(t, err)

	got, err = db.NewTicketRepo(e.d).GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestTicketStatusChangeNotifiesFollowers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, citizen := e.user(t, models.RoleCitizen, nil)
	follower, followerP := e.user(t, models.RoleCitizen, nil)
	_, support := e.user(t, models.RoleSupport, nil)

	tk := e.createTicket(t, citizen, infra.ID, "")
	require.NoError(t, e.tickets.Follow(ctx, tk.ID, followerP))

	_, err := e.tickets.UpdateStatus(ctx, tk.ID, models.StatusInProgress, "", support)
	require.NoError(t, err)

	reporterNs := e.unread(t, citizen.UserID)
	var statusNs int
	for _, n := range reporterNs {
		if n.Type == models.NotifyTicketStatusChanged {
			statusNs++
		}
	}
	assert.Equal(t, 1, statusNs)

	followerNs := e.unread(t, follower.ID)
	require.NotEmpty(t, followerNs)
	assert.Equal(t, models.NotifyTicketStatusChanged, followerNs[len(followerNs)-1].Type)
}

func TestTicketUpdatePermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, reporter := e.user(t, models.RoleCitizen, nil)
	_, stranger := e.user(t, models.RoleCitizen, nil)
	_, support := e.user(t, models.RoleSupport, nil)
	tk := e.createTicket(t, reporter, infra.ID, "")

	newTitle := "Pothole on Main, update"

	// Another citizen cannot touch it.
	_, err := e.tickets.Update(ctx, tk.ID, UpdateTicketInput{Title: &newTitle}, stranger)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))

	// Reporter can edit while NEW.
	updated, err := e.tickets.Update(ctx, tk.ID, UpdateTicketInput{Title: &newTitle}, reporter)
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)

	// After work starts, the reporter is locked out but staff are not.
	_, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusInProgress, "", support)
	require.NoError(t, err)

	_, err = e.tickets.Update(ctx, tk.ID, UpdateTicketInput{Title: &newTitle}, reporter)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))

	_, err = e.tickets.Update(ctx, tk.ID, UpdateTicketInput{Title: &newTitle}, support)
	require.NoError(t, err)

	// Nobody edits a closed ticket.
	_, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusResolved, "", support)
	require.NoError(t, err)
	_, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusClosed, "", support)
	require.NoError(t, err)

	_, err = e.tickets.Update(ctx, tk.ID, UpdateTicketInput{Title: &newTitle}, support)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.GetKind(err))
}

func TestTicketDeleteOnlyReporterWhileNew(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, reporter := e.user(t, models.RoleCitizen, nil)
	_, support := e.user(t, models.RoleSupport, nil)
	tk := e.createTicket(t, reporter, infra.ID, "")

	err := e.tickets.Delete(ctx, tk.ID, support)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))

	require.NoError(t, e.tickets.Delete(ctx, tk.ID, reporter))

	// Gone from detail and lists.
	_, err = e.tickets.Detail(ctx, tk.ID, reporter)
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))

	items, total, err := e.tickets.ListMy(ctx, ListQuery{}, reporter)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	tk2 := e.createTicket(t, reporter, infra.ID, "")
	_, err = e.tickets.UpdateStatus(ctx, tk2.ID, models.StatusInProgress, "", support)
	require.NoError(t, err)
	err = e.tickets.Delete(ctx, tk2.ID, reporter)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))
}

func TestTicketAssignTeam(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	crew := e.team(t, "Infra Crew", nil, nil)
	support, _ := e.user(t, models.RoleSupport, &crew.ID)
	_, citizen := e.user(t, models.RoleCitizen, nil)
	_, manager := e.user(t, models.RoleManager, nil)

	tk := e.createTicket(t, citizen, infra.ID, "")
	require.Nil(t, tk.TeamID)

	tk, err := e.tickets.AssignTeam(ctx, tk.ID, crew.ID, manager)
	require.NoError(t, err)
	require.NotNil(t, tk.TeamID)
	assert.Equal(t, crew.ID, *tk.TeamID)

	ns := e.unread(t, support.ID)
	require.Len(t, ns, 1)
	assert.Equal(t, models.NotifyTicketAssigned, ns[0].Type)

	_, err = e.tickets.AssignTeam(ctx, tk.ID, "missing-team", manager)
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
}

func TestTicketNearby(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, citizen := e.user(t, models.RoleCitizen, nil)

	mk := func(lat, lng float64) *models.Ticket {
		tk, err := e.tickets.Create(ctx, CreateTicketInput{
			Title:       "Pothole on Main",
			Description: "Large pothole near #42 Main St, dangerous.",
			CategoryID:  infra.ID,
			Latitude:    lat,
			Longitude:   lng,
		}, citizen)
		require.NoError(t, err)
		return tk
	}

	near1 := mk(41.008, 28.978)
	near2 := mk(41.010, 28.980)
	mk(41.100, 28.978) // ~10 km away

	results, err := e.tickets.Nearby(ctx, 41.008, 28.978, 500, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near1.ID, results[0].ID)
	assert.Equal(t, near2.ID, results[1].ID)
	assert.Less(t, results[0].DistanceMeters, results[1].DistanceMeters)
}

func TestTicketNearbyExcludesSettled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, citizen := e.user(t, models.RoleCitizen, nil)
	_, support := e.user(t, models.RoleSupport, nil)

	tk := e.createTicket(t, citizen, infra.ID, "")
	_, err := e.tickets.UpdateStatus(ctx, tk.ID, models.StatusInProgress, "", support)
	require.NoError(t, err)
	_, err = e.tickets.UpdateStatus(ctx, tk.ID, models.StatusResolved, "", support)
	require.NoError(t, err)

	results, err := e.tickets.Nearby(ctx, 41.0082, 28.9784, 500, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTicketFollowIdempotentAndNotifies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	reporter, reporterP := e.user(t, models.RoleCitizen, nil)
	_, otherP := e.user(t, models.RoleCitizen, nil)
	tk := e.createTicket(t, reporterP, infra.ID, "")

	require.NoError(t, e.tickets.Follow(ctx, tk.ID, otherP))
	require.NoError(t, e.tickets.Follow(ctx, tk.ID, otherP))

	var followed int
	for _, n := range e.unread(t, reporter.ID) {
		if n.Type == models.NotifyTicketFollowed {
			followed++
		}
	}
	assert.Equal(t, 1, followed)

	// Unfollowing twice is a no-op.
	require.NoError(t, e.tickets.Unfollow(ctx, tk.ID, otherP))
	require.NoError(t, e.tickets.Unfollow(ctx, tk.ID, otherP))
}

func TestTicketDetailProjection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	crew := e.team(t, "Infra Crew", []string{infra.ID}, nil)
	_, reporter := e.user(t, models.RoleCitizen, nil)
	_, support := e.user(t, models.RoleSupport, &crew.ID)

	tk := e.createTicket(t, reporter, infra.ID, "")

	_, err := e.comments.Add(ctx, tk.ID, "public note", false, support)
	require.NoError(t, err)
	_, err = e.comments.Add(ctx, tk.ID, "internal note", true, support)
	require.NoError(t, err)

	// Citizen view: public comments only, no escalation history, following.
	detail, err := e.tickets.Detail(ctx, tk.ID, reporter)
	require.NoError(t, err)
	assert.True(t, detail.IsFollowing)
	assert.False(t, detail.HasFeedback)
	assert.False(t, detail.HasEscalation)
	assert.True(t, detail.CanEscalate)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "public note", detail.Comments[0].Content)
	require.NotNil(t, detail.Category)
	require.NotNil(t, detail.Location)
	require.NotNil(t, detail.Reporter)
	require.NotNil(t, detail.Team)

	// Staff view sees both comments.
	staffDetail, err := e.tickets.Detail(ctx, tk.ID, support)
	require.NoError(t, err)
	assert.Len(t, staffDetail.Comments, 2)
	assert.False(t, staffDetail.IsFollowing)

	// An open escalation flips the flags.
	_, err = e.escalations.Create(ctx, tk.ID, "needs sign-off", support)
	require.NoError(t, err)

	detail, err = e.tickets.Detail(ctx, tk.ID, reporter)
	require.NoError(t, err)
	assert.True(t, detail.HasEscalation)
	assert.False(t, detail.CanEscalate)
	assert.Empty(t, detail.Escalations)

	staffDetail, err = e.tickets.Detail(ctx, tk.ID, support)
	require.NoError(t, err)
	assert.Len(t, staffDetail.Escalations, 1)
}

func TestTicketAddPhoto(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, reporter := e.user(t, models.RoleCitizen, nil)
	_, stranger := e.user(t, models.RoleCitizen, nil)
	tk := e.createTicket(t, reporter, infra.ID, "")

	photo, err := e.tickets.AddPhoto(ctx, tk.ID, []byte("jpeg-bytes"), "pothole.jpg", "image/jpeg", reporter)
	require.NoError(t, err)
	assert.NotEmpty(t, photo.URL)
	assert.Equal(t, "pothole.jpg", photo.Filename)

	_, err = e.tickets.AddPhoto(ctx, tk.ID, []byte("x"), "a.jpg", "image/jpeg", stranger)
	assert.Equal(t, apperr.KindForbidden, apperr.GetKind(err))

	_, err = e.tickets.AddPhoto(ctx, tk.ID, []byte("x"), "a.pdf", "application/pdf", reporter)
	assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))

	detail, err := e.tickets.Detail(ctx, tk.ID, reporter)
	require.NoError(t, err)
	require.Len(t, detail.Photos, 1)
	assert.NotEmpty(t, detail.Photos[0].URL)
}

func TestTicketListPagination(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	infra := e.category(t, "Infrastructure")
	_, citizen := e.user(t, models.RoleCitizen, nil)
	for i := 0; i < 5; i++ {
		e.createTicket(t, citizen, infra.ID, "")
	}

	items, total, err := e.tickets.ListAll(ctx, ListQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, items, 2)

	items, total, err = e.tickets.ListAll(ctx, ListQuery{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, items, 1)
}

func TestTicketListAssignedTeamless(t *testing.T) {
	e := newEnv(t)

	_, support := e.user(t, models.RoleSupport, nil)
	items, total, err := e.tickets.ListAssigned(context.Background(), ListQuery{}, support)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}
