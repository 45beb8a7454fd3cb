package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventloom/publish-governance/internal/auth"
	"github.com/eventloom/publish-governance/internal/httpserver"
	"github.com/eventloom/publish-governance/internal/models"
	"github.com/eventloom/publish-governance/internal/publish"
	"github.com/eventloom/publish-governance/internal/store"
)

var jwtSecret = []byte("server-test-secret")

type env struct {
	srv   *httptest.Server
	store *store.MemoryStore
	event models.Event
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := store.NewMemoryStore()

	start := time.Now().UTC().Add(24 * time.Hour)
	end := start.Add(2 * time.Hour)
	ev := models.Event{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "Conf",
		Description: "Tech conference",
		StartDate:   &start,
		EndDate:     &end,
		Visibility:  "public",
		LandingPage: &models.LandingPageDoc{Blocks: []models.LandingBlock{{Type: "hero"}}},
		Status:      models.EventStatusDraft,
	}
	mem.PutEvent(ev)
	cfg := models.DefaultPublishConfig(ev.WorkspaceID)
	cfg.RequiresApproval = true
	mem.PutWorkspace(cfg)
	mem.SetTicketTierCount(ev.ID, 1)

	server := httpserver.New(publish.New(mem), mem, jwtSecret)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &env{srv: ts, store: mem, event: ev}
}

func token(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	require.NoError(t, err)
	return raw
}

func (e *env) do(t *testing.T, method, path, bearer string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthAndReady(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestReadinessEndpoint(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/readiness", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.ChecklistResult
	decodeBody(t, resp, &result)
	assert.True(t, result.CanPublish)
	assert.NotEmpty(t, result.Items)

	resp = e.do(t, http.MethodGet, "/events/"+uuid.NewString()+"/readiness", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	organizer := token(t, "organizer-1", auth.RoleOrganizer)
	reviewer := token(t, "reviewer-1", auth.RoleReviewer)

	// Submit requires the organizer role.
	resp := e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish-request", "",
		map[string]string{"priority": "high"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish-request", organizer,
		map[string]string{"priority": "high", "notes": "ready"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.PublishRequest
	decodeBody(t, resp, &created)
	assert.Equal(t, models.RequestPending, created.Status)
	assert.True(t, created.Snapshot.CanPublish)

	// Duplicate submission conflicts.
	resp = e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish-request", organizer,
		map[string]string{"priority": "low"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// An organizer cannot approve.
	resp = e.do(t, http.MethodPost, "/publish-requests/"+created.ID.String()+"/approve", organizer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Reject with empty notes is a validation error.
	resp = e.do(t, http.MethodPost, "/publish-requests/"+created.ID.String()+"/reject", reviewer, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Approve publishes the event.
	resp = e.do(t, http.MethodPost, "/publish-requests/"+created.ID.String()+"/approve", reviewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resolved models.PublishRequest
	decodeBody(t, resp, &resolved)
	assert.Equal(t, models.RequestApproved, resolved.Status)

	// A second approval conflicts.
	resp = e.do(t, http.MethodPost, "/publish-requests/"+created.ID.String()+"/approve", reviewer, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// History shows the transition.
	resp = e.do(t, http.MethodGet, "/events/"+e.event.ID.String()+"/history", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []models.StatusHistoryEntry
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EventStatusPublished, entries[0].NewStatus)
	assert.Equal(t, "reviewer-1", entries[0].ChangedBy)
}

func TestCancelOverHTTP(t *testing.T) {
	e := newEnv(t)
	organizer := token(t, "organizer-1", auth.RoleOrganizer)

	resp := e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish-request", organizer, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.PublishRequest
	decodeBody(t, resp, &created)

	resp = e.do(t, http.MethodDelete, "/publish-requests/"+created.ID.String(), organizer, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Immediately resubmittable.
	resp = e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish-request", organizer, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestReviewerQueue(t *testing.T) {
	e := newEnv(t)
	organizer := token(t, "organizer-1", auth.RoleOrganizer)
	reviewer := token(t, "reviewer-1", auth.RoleReviewer)

	resp := e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish-request", organizer,
		map[string]string{"priority": "urgent"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/publish-requests?status=pending&workspace="+e.event.WorkspaceID.String(), reviewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reqs []models.PublishRequest
	decodeBody(t, resp, &reqs)
	require.Len(t, reqs, 1)
	assert.Equal(t, models.PriorityUrgent, reqs[0].Priority)
}

func TestDirectPublishAndStatusChange(t *testing.T) {
	e := newEnv(t)
	organizer := token(t, "organizer-1", auth.RoleOrganizer)

	resp := e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/publish", organizer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ev models.Event
	decodeBody(t, resp, &ev)
	assert.Equal(t, models.EventStatusPublished, ev.Status)

	resp = e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/status", organizer,
		map[string]interface{}{"status": "cancelled", "reason": "low sales"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &ev)
	assert.Equal(t, models.EventStatusCancelled, ev.Status)

	resp = e.do(t, http.MethodPost, "/events/"+e.event.ID.String()+"/status", organizer,
		map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPublishConfigEndpoints(t *testing.T) {
	e := newEnv(t)
	admin := token(t, "admin-1", auth.RoleWorkspaceAdmin)
	organizer := token(t, "organizer-1", auth.RoleOrganizer)

	resp := e.do(t, http.MethodGet, "/workspaces/"+e.event.WorkspaceID.String()+"/publish-config", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg models.WorkspacePublishConfig
	decodeBody(t, resp, &cfg)
	assert.True(t, cfg.RequiresApproval)

	// Only workspace admins may edit.
	resp = e.do(t, http.MethodPut, "/workspaces/"+e.event.WorkspaceID.String()+"/publish-config", organizer,
		map[string]interface{}{"requiresApproval": false})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPut, "/workspaces/"+e.event.WorkspaceID.String()+"/publish-config", admin,
		map[string]interface{}{
			"requiresApproval": false,
			"requirements":     models.PublishRequirements{LandingPage: true, SEO: true},
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &cfg)
	assert.False(t, cfg.RequiresApproval)
	assert.True(t, cfg.Requirements.SEO)
}
