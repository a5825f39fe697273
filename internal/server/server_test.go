package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/config"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/service"
)

// testServer runs the full HTTP stack over an in-memory database.
type testServer struct {
	t   *testing.T
	s   *Server
	ts  *httptest.Server
	d   *db.DB
	seq int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	d := db.NewTestDB(t)
	t.Cleanup(func() { d.Close() })

	cfg := config.DefaultConfig()
	cfg.JWTSecret = "test-secret"
	cfg.StorageDir = t.TempDir()
	cfg.RateLimitMax = 100

	s, err := New(cfg, d, zap.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &testServer{t: t, s: s, ts: ts, d: d}
}

func (ts *testServer) user(role models.Role, teamID *string) (*models.User, string) {
	ts.t.Helper()
	ts.seq++
	u := &models.User{
		Phone:        fmt.Sprintf("+90555%07d", ts.seq),
		Email:        fmt.Sprintf("http%d@example.com", ts.seq),
		Name:         fmt.Sprintf("User %d", ts.seq),
		PasswordHash: "x",
		Role:         role,
		TeamID:       teamID,
		IsActive:     true,
	}
	require.NoError(ts.t, db.NewUserRepo(ts.d).Create(context.Background(), u))
	token, err := ts.s.tokens.Sign(u)
	require.NoError(ts.t, err)
	return u, token
}

func (ts *testServer) category(name string) *models.Category {
	ts.t.Helper()
	c := &models.Category{Name: name, IsActive: true}
	require.NoError(ts.t, db.NewCategoryRepo(ts.d).Create(context.Background(), c))
	return c
}

func (ts *testServer) district(name, city string) *models.District {
	ts.t.Helper()
	d := &models.District{Name: name, City: city}
	require.NoError(ts.t, db.NewDistrictRepo(ts.d).Create(context.Background(), d))
	return d
}

func (ts *testServer) team(name string, categoryIDs, districtIDs []string) *models.Team {
	ts.t.Helper()
	team, err := ts.s.admin.CreateTeam(context.Background(), service.TeamInput{
		Name:        name,
		CategoryIDs: categoryIDs,
		DistrictIDs: districtIDs,
	})
	require.NoError(ts.t, err)
	return team
}

// do sends a JSON request and decodes the response body into a generic map.
// A nil body sends no payload.
func (ts *testServer) do(method, path, token string, body any) (int, map[string]any) {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.ts.URL+path, reader)
	require.NoError(ts.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.ts.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	if len(raw) > 0 {
		require.NoError(ts.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// uploadPhoto sends a multipart photo upload with an explicit part
// content type.
func (ts *testServer) uploadPhoto(token, ticketID, filename, contentType string, data []byte) (int, map[string]any) {
	ts.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(ts.t, err)
	_, err = part.Write(data)
	require.NoError(ts.t, err)
	require.NoError(ts.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.ts.URL+"/api/v1/tickets/"+ticketID+"/photos", &buf)
	require.NoError(ts.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := ts.ts.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	if len(raw) > 0 {
		require.NoError(ts.t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (ts *testServer) createTicket(token string, body map[string]any) map[string]any {
	ts.t.Helper()
	status, got := ts.do(http.MethodPost, "/api/v1/tickets", token, body)
	require.Equal(ts.t, http.StatusCreated, status, "body: %v", got)
	return got
}

func potholeBody(categoryID, district string) map[string]any {
	return map[string]any{
		"title":       "Pothole on Main",
		"description": "Large pothole near #42 Main St, dangerous.",
		"category_id": categoryID,
		"latitude":    41.0082,
		"longitude":   28.9784,
		"district":    district,
		"city":        "Istanbul",
	}
}
