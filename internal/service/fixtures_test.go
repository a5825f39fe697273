package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/notify"
)

// env wires the full service stack over an in-memory database.
type env struct {
	d           *db.DB
	tickets     *TicketService
	escalations *EscalationService
	comments    *CommentService
	feedback    *FeedbackService
	notifs      *NotificationService
	admin       *AdminService
	analytics   *AnalyticsService

	seq int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d := db.NewTestDB(t)
	t.Cleanup(func() { d.Close() })

	log := zap.NewNop()
	engine := notify.NewEngine(d, log, nil)
	return &env{
		d:           d,
		tickets:     NewTicketService(d, log, engine, &memStore{}, "Istanbul"),
		escalations: NewEscalationService(d, log, engine),
		comments:    NewCommentService(d, log, engine),
		feedback:    NewFeedbackService(d, log),
		notifs:      NewNotificationService(d),
		admin:       NewAdminService(d, log),
		analytics:   NewAnalyticsService(d),
	}
}

// memStore is an in-memory storage.Client for tests.
type memStore struct {
	objects map[string][]byte
	seq     int
}

func (m *memStore) Put(_ context.Context, data []byte, _, folder string) (string, error) {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.seq++
	key := fmt.Sprintf("%s/obj-%d", folder, m.seq)
	m.objects[key] = data
	return key, nil
}

func (m *memStore) PublicURL(key string) string {
	return "http://test.local/media/" + key
}

func (e *env) user(t *testing.T, role models.Role, teamID *string) (*models.User, auth.Principal) {
	t.Helper()
	e.seq++
	u := &models.User{
		Phone:        fmt.Sprintf("+90544%07d", e.seq),
		Email:        fmt.Sprintf("svc%d@example.com", e.seq),
		Name:         fmt.Sprintf("User %d", e.seq),
		PasswordHash: "x",
		Role:         role,
		TeamID:       teamID,
		IsActive:     true,
	}
	require.NoError(t, db.NewUserRepo(e.d).Create(context.Background(), u))
	return u, auth.Principal{UserID: u.ID, Role: role, TeamID: teamID}
}

func (e *env) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, IsActive: true}
	require.NoError(t, db.NewCategoryRepo(e.d).Create(context.Background(), c))
	return c
}

func (e *env) team(t *testing.T, name string, categoryIDs, districtIDs []string) *models.Team {
	t.Helper()
	ctx := context.Background()
	repo := db.NewTeamRepo(e.d)
	tm := &models.Team{Name: name}
	require.NoError(t, repo.Create(ctx, tm))
	if len(categoryIDs) > 0 {
		require.NoError(t, repo.SetCategories(ctx, tm.ID, categoryIDs))
	}
	if len(districtIDs) > 0 {
		require.NoError(t, repo.SetDistricts(ctx, tm.ID, districtIDs))
	}
	return tm
}

func (e *env) district(t *testing.T, name, city string) *models.District {
	t.Helper()
	d := &models.District{Name: name, City: city}
	require.NoError(t, db.NewDistrictRepo(e.d).Create(context.Background(), d))
	return d
}

func (e *env) createTicket(t *testing.T, p auth.Principal, categoryID, district string) *models.Ticket {
	t.Helper()
	tk, err := e.tickets.Create(context.Background(), CreateTicketInput{
		Title:       "Pothole on Main",
		Description: "Large pothole near #42 Main St, dangerous.",
		CategoryID:  categoryID,
		Latitude:    41.0082,
		Longitude:   28.9784,
		District:    district,
	}, p)
	require.NoError(t, err)
	return tk
}

func (e *env) unread(t *testing.T, userID string) []*models.Notification {
	t.Helper()
	ns, err := db.NewNotificationRepo(e.d).ListByUser(context.Background(), userID, true, 0, 0)
	require.NoError(t, err)
	return ns
}
