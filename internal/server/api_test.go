package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akorkmaz/civita/internal/models"
)

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(http.MethodGet, "/api/v1/tickets/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/tickets/my", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

// Citizen creates a ticket routed to the (category, district) team; the
// reporter follows it, the first status log is written and the reporter gets
// a TICKET_CREATED notification.
func TestTicketLifecycleHappyPath(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	kadikoy := ts.district("Kadıköy", "Istanbul")
	crew := ts.team("Infra Crew", []string{infra.ID}, []string{kadikoy.ID})
	_, citizen := ts.user(models.RoleCitizen, nil)

	created := ts.createTicket(citizen, potholeBody(infra.ID, "Kadıköy"))
	assert.Equal(t, "NEW", created["status"])
	assert.Equal(t, crew.ID, created["team_id"])
	ticketID := created["id"].(string)

	status, detail := ts.do(http.MethodGet, "/api/v1/tickets/"+ticketID, citizen, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, detail["is_following"])
	logs := detail["status_logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "NEW", logs[0].(map[string]any)["new_status"])
	assert.Nil(t, logs[0].(map[string]any)["old_status"])

	status, notifs := ts.do(http.MethodGet, "/api/v1/notifications?unread_only=true", citizen, nil)
	require.Equal(t, http.StatusOK, status)
	items := notifs["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "TICKET_CREATED", items[0].(map[string]any)["type"])
}

func TestStatusWalk(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, citizen := ts.user(models.RoleCitizen, nil)
	_, support := ts.user(models.RoleSupport, nil)

	ticketID := ts.createTicket(citizen, potholeBody(infra.ID, ""))["id"].(string)
	statusPath := "/api/v1/tickets/" + ticketID + "/status"

	status, _ := ts.do(http.MethodPatch, statusPath, support, map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusOK, status)

	status, body := ts.do(http.MethodPatch, statusPath, support, map[string]any{"status": "RESOLVED", "comment": "Filled"})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["resolved_at"])

	status, _ = ts.do(http.MethodPatch, statusPath, support, map[string]any{"status": "CLOSED"})
	assert.Equal(t, http.StatusOK, status)

	// CLOSED -> NEW is not in the transition table.
	status, body = ts.do(http.MethodPatch, statusPath, support, map[string]any{"status": "NEW"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["detail"])

	// Citizens cannot touch status at all.
	status, _ = ts.do(http.MethodPatch, statusPath, citizen, map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusForbidden, status)
}

// Two support agents of the same team race to escalate; exactly one wins.
func TestEscalationConflict(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	crew := ts.team("Infra Crew", []string{infra.ID}, nil)
	_, agentA := ts.user(models.RoleSupport, &crew.ID)
	_, agentB := ts.user(models.RoleSupport, &crew.ID)
	_, citizen := ts.user(models.RoleCitizen, nil)

	ticketID := ts.createTicket(citizen, potholeBody(infra.ID, ""))["id"].(string)
	body := map[string]any{"ticket_id": ticketID, "reason": "Budget approval needed"}

	statuses := make([]int, 2)
	var wg sync.WaitGroup
	for i, token := range []string{agentA, agentB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i], _ = ts.do(http.MethodPost, "/api/v1/escalations", token, body)
		}()
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, code := range statuses {
		switch code {
		case http.StatusCreated:
			wins++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "statuses: %v", statuses)
	assert.Equal(t, 1, conflicts, "statuses: %v", statuses)
}

func TestEscalationReviewEndpoints(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	crew := ts.team("Infra Crew", []string{infra.ID}, nil)
	_, support := ts.user(models.RoleSupport, &crew.ID)
	_, manager := ts.user(models.RoleManager, nil)
	_, citizen := ts.user(models.RoleCitizen, nil)

	ticketID := ts.createTicket(citizen, potholeBody(infra.ID, ""))["id"].(string)

	status, esc := ts.do(http.MethodPost, "/api/v1/escalations", support, map[string]any{
		"ticket_id": ticketID,
		"reason":    "Budget approval needed",
	})
	require.Equal(t, http.StatusCreated, status)
	escID := esc["id"].(string)

	// Support cannot review.
	status, _ = ts.do(http.MethodPatch, "/api/v1/escalations/"+escID+"/approve", support, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, reviewed := ts.do(http.MethodPatch, "/api/v1/escalations/"+escID+"/approve", manager, map[string]any{"comment": "go ahead"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "APPROVED", reviewed["status"])

	status, ticket := ts.do(http.MethodGet, "/api/v1/tickets/"+ticketID, manager, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "IN_PROGRESS", ticket["status"])

	// Second decision conflicts.
	status, _ = ts.do(http.MethodPatch, "/api/v1/escalations/"+escID+"/reject", manager, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestFeedbackGateOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, citizen := ts.user(models.RoleCitizen, nil)
	_, support := ts.user(models.RoleSupport, nil)

	ticketID := ts.createTicket(citizen, potholeBody(infra.ID, ""))["id"].(string)
	statusPath := "/api/v1/tickets/" + ticketID + "/status"
	feedbackPath := "/api/v1/feedback/tickets/" + ticketID

	status, _ := ts.do(http.MethodPatch, statusPath, support, map[string]any{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(http.MethodPost, feedbackPath, citizen, map[string]any{"rating": 5, "comment": "Excellent"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(http.MethodPatch, statusPath, support, map[string]any{"status": "RESOLVED"})
	require.Equal(t, http.StatusOK, status)

	status, fb := ts.do(http.MethodPost, feedbackPath, citizen, map[string]any{"rating": 5, "comment": "Excellent"})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(5), fb["rating"])

	status, _ = ts.do(http.MethodPost, feedbackPath, citizen, map[string]any{"rating": 3})
	assert.Equal(t, http.StatusConflict, status)

	// Ratings outside 1..5 are schema violations.
	status, body := ts.do(http.MethodPost, feedbackPath, citizen, map[string]any{"rating": 6})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.NotEmpty(t, body["detail"])
}

func TestNearbySearch(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, citizen := ts.user(models.RoleCitizen, nil)

	coords := [][2]float64{{41.008, 28.978}, {41.010, 28.980}, {41.100, 28.978}}
	ids := make([]string, len(coords))
	for i, c := range coords {
		body := potholeBody(infra.ID, "")
		body["latitude"] = c[0]
		body["longitude"] = c[1]
		ids[i] = ts.createTicket(citizen, body)["id"].(string)
	}

	status, got := ts.do(http.MethodGet,
		"/api/v1/tickets/nearby?latitude=41.008&longitude=28.978&radius_meters=500", citizen, nil)
	require.Equal(t, http.StatusOK, status)

	items := got["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, ids[0], items[0].(map[string]any)["id"])
	assert.Equal(t, ids[1], items[1].(map[string]any)["id"])

	status, _ = ts.do(http.MethodGet, "/api/v1/tickets/nearby?latitude=91&longitude=0", citizen, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestTicketUpdateRBAC(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, citizenA := ts.user(models.RoleCitizen, nil)
	_, citizenB := ts.user(models.RoleCitizen, nil)
	_, support := ts.user(models.RoleSupport, nil)

	ticketID := ts.createTicket(citizenA, potholeBody(infra.ID, ""))["id"].(string)
	patch := map[string]any{"title": "Pothole on Main, worse now"}

	// Another citizen cannot edit.
	status, _ := ts.do(http.MethodPatch, "/api/v1/tickets/"+ticketID, citizenB, patch)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(http.MethodPatch, "/api/v1/tickets/"+ticketID, citizenA, patch)
	assert.Equal(t, http.StatusOK, status)

	// After work starts the reporter is locked out too.
	status, _ = ts.do(http.MethodPatch, "/api/v1/tickets/"+ticketID+"/status", support, map[string]any{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, status)
	status, body := ts.do(http.MethodPatch, "/api/v1/tickets/"+ticketID, citizenA, patch)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body["detail"], "still NEW")
}

func TestCommentVisibilityOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, citizen := ts.user(models.RoleCitizen, nil)
	_, support := ts.user(models.RoleSupport, nil)

	ticketID := ts.createTicket(citizen, potholeBody(infra.ID, ""))["id"].(string)
	commentsPath := "/api/v1/tickets/" + ticketID + "/comments"

	status, _ := ts.do(http.MethodPost, commentsPath, citizen, map[string]any{"content": "any update?"})
	assert.Equal(t, http.StatusCreated, status)

	// Citizens cannot open the internal channel.
	status, _ = ts.do(http.MethodPost, commentsPath, citizen, map[string]any{"content": "sneaky", "is_internal": true})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(http.MethodPost, commentsPath, support, map[string]any{"content": "crew dispatched", "is_internal": true})
	assert.Equal(t, http.StatusCreated, status)

	status, got := ts.do(http.MethodGet, commentsPath, citizen, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, got["items"].([]any), 1)

	status, got = ts.do(http.MethodGet, commentsPath, support, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, got["items"].([]any), 2)
}

func TestFollowUnfollowIdempotent(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, reporter := ts.user(models.RoleCitizen, nil)
	_, other := ts.user(models.RoleCitizen, nil)

	ticketID := ts.createTicket(reporter, potholeBody(infra.ID, ""))["id"].(string)
	followPath := "/api/v1/tickets/" + ticketID + "/follow"

	status, _ := ts.do(http.MethodPost, followPath, other, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = ts.do(http.MethodPost, followPath, other, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(http.MethodDelete, followPath, other, nil)
	assert.Equal(t, http.StatusNoContent, status)
	// Unfollowing again is still a 204.
	status, _ = ts.do(http.MethodDelete, followPath, other, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	_, citizen := ts.user(models.RoleCitizen, nil)

	status, body := ts.do(http.MethodPost, "/api/v1/tickets", citizen, map[string]any{
		"title":       "no",
		"description": "too short",
		"category_id": "not-a-uuid",
		"latitude":    99.0,
		"longitude":   28.9784,
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	fields := body["detail"].([]any)
	names := make(map[string]bool)
	for _, f := range fields {
		names[f.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, names["title"])
	assert.True(t, names["categoryid"] || names["category_id"])
	assert.True(t, names["latitude"])
}

func TestAdminSurfaceRBAC(t *testing.T) {
	ts := newTestServer(t)

	_, citizen := ts.user(models.RoleCitizen, nil)
	_, support := ts.user(models.RoleSupport, nil)
	_, manager := ts.user(models.RoleManager, nil)

	body := map[string]any{"name": "Parks Crew"}
	status, _ := ts.do(http.MethodPost, "/api/v1/admin/teams", citizen, body)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = ts.do(http.MethodPost, "/api/v1/admin/teams", support, body)
	assert.Equal(t, http.StatusForbidden, status)

	status, team := ts.do(http.MethodPost, "/api/v1/admin/teams", manager, body)
	require.Equal(t, http.StatusCreated, status)

	status, _ = ts.do(http.MethodDelete, "/api/v1/admin/teams/"+team["id"].(string), manager, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAnalyticsOverviewEndpoint(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	ts.team("Infra Crew", []string{infra.ID}, nil)
	_, citizen := ts.user(models.RoleCitizen, nil)
	_, manager := ts.user(models.RoleManager, nil)

	ts.createTicket(citizen, potholeBody(infra.ID, ""))

	status, _ := ts.do(http.MethodGet, "/api/v1/analytics/overview", citizen, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, got := ts.do(http.MethodGet, "/api/v1/analytics/overview", manager, nil)
	require.Equal(t, http.StatusOK, status)
	counts := got["status_counts"].(map[string]any)
	assert.Equal(t, float64(1), counts["NEW"])
}

func TestRateLimitTicketCreation(t *testing.T) {
	ts := newTestServer(t)
	ts.s.limiter = newRateLimiter(3, time.Minute)

	infra := ts.category("Infrastructure")
	_, citizen := ts.user(models.RoleCitizen, nil)

	for i := 0; i < 3; i++ {
		body := potholeBody(infra.ID, "")
		body["title"] = fmt.Sprintf("Pothole number %d", i)
		status, _ := ts.do(http.MethodPost, "/api/v1/tickets", citizen, body)
		require.Equal(t, http.StatusCreated, status)
	}

	req, err := http.NewRequest(http.MethodPost, ts.ts.URL+"/api/v1/tickets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+citizen)
	resp, err := ts.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestPhotoUploadAndServing(t *testing.T) {
	ts := newTestServer(t)

	infra := ts.category("Infrastructure")
	_, citizen := ts.user(models.RoleCitizen, nil)
	_, stranger := ts.user(models.RoleCitizen, nil)
	tk := ts.createTicket(citizen, potholeBody(infra.ID, ""))
	ticketID := tk["id"].(string)

	payload := []byte("jpeg-bytes")
	status, got := ts.uploadPhoto(citizen, ticketID, "pothole.jpg", "image/jpeg", payload)
	require.Equal(t, http.StatusCreated, status, "body: %v", got)
	assert.NotEmpty(t, got["id"])
	assert.Equal(t, "pothole.jpg", got["filename"])

	url := got["url"].(string)
	require.True(t, strings.HasPrefix(url, "/storage/"), "url: %s", url)

	// Stored objects are served by the static mount.
	resp, err := ts.ts.Client().Get(ts.ts.URL + url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	served, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, served)

	status, _ = ts.uploadPhoto(stranger, ticketID, "a.jpg", "image/jpeg", []byte("x"))
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.uploadPhoto(citizen, ticketID, "a.pdf", "application/pdf", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}
