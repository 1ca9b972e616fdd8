package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooktail-systems/hooktail/internal/cache"
	"github.com/hooktail-systems/hooktail/internal/connector"
	"github.com/hooktail-systems/hooktail/internal/handlers"
	"github.com/hooktail-systems/hooktail/internal/logging"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/repository"
	"github.com/hooktail-systems/hooktail/internal/server"
)

func seedRecord(id, session, hookType string, minutesAgo int, status string) models.EventRecord {
	return models.EventRecord{
		ID:                  id,
		HookType:            hookType,
		Timestamp:           time.Now().UTC().Add(-time.Duration(minutesAgo) * time.Minute),
		SessionID:           session,
		Sequence:            int64(minutesAgo),
		CoreStatus:          status,
		CoreExecutionTimeMS: 100,
		PayloadToolName:     "Bash",
	}
}

// newTestServer seeds a memory-backed repository and mounts the full
// router around it.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := cache.NewMemoryStore()
	require.NoError(t, store.InsertBatch(context.Background(), []models.EventRecord{
		seedRecord("ev-1", "s1", "pre_tool_use", 30, models.StatusSuccess),
		seedRecord("ev-2", "s1", "post_tool_use", 20, models.StatusSuccess),
		seedRecord("ev-3", "s2", "notification", 10, models.StatusSuccess),
		seedRecord("ev-4", "s2", "post_tool_use", 5, models.StatusError),
	}))

	conn := connector.New(connector.Config{Subject: "hooks.events"}, nil)
	repo := repository.New(conn, store, 0, nil)
	srv := httptest.NewServer(server.NewRouter(handlers.New(repo, 1000, logging.Default())))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestEventsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	t.Run("lists newest first", func(t *testing.T) {
		var body struct {
			Events []models.CanonicalEvent `json:"events"`
			Total  int                     `json:"total"`
		}
		resp := getJSON(t, srv.URL+"/api/v1/events", &body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 4, body.Total)
		require.Len(t, body.Events, 4)
		assert.Equal(t, "ev-4", body.Events[0].ID)
	})

	t.Run("filters by session and type", func(t *testing.T) {
		var body struct {
			Events []models.CanonicalEvent `json:"events"`
		}
		getJSON(t, srv.URL+"/api/v1/events?sessions=s2&types=post_tool_use", &body)
		require.Len(t, body.Events, 1)
		assert.Equal(t, "ev-4", body.Events[0].ID)
	})

	t.Run("filters by severity", func(t *testing.T) {
		var body struct {
			Events []models.CanonicalEvent `json:"events"`
		}
		getJSON(t, srv.URL+"/api/v1/events?severities=ERROR", &body)
		require.Len(t, body.Events, 1)
		assert.Equal(t, "ev-4", body.Events[0].ID)
	})

	t.Run("limit caps events but reports the full total", func(t *testing.T) {
		var body struct {
			Events []models.CanonicalEvent `json:"events"`
			Total  int                     `json:"total"`
		}
		getJSON(t, srv.URL+"/api/v1/events?limit=2", &body)
		assert.Len(t, body.Events, 2)
		assert.Equal(t, 4, body.Total)
	})

	t.Run("search", func(t *testing.T) {
		var body struct {
			Events []models.CanonicalEvent `json:"events"`
		}
		getJSON(t, srv.URL+"/api/v1/events?q=bash", &body)
		assert.NotEmpty(t, body.Events)
	})

	t.Run("rejects unknown severity", func(t *testing.T) {
		var errBody models.ErrorResponse
		resp := getJSON(t, srv.URL+"/api/v1/events?severities=LOUD", &errBody)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_criteria", errBody.Code)
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		resp := getJSON(t, srv.URL+"/api/v1/events?limit=zero", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects non-GET", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "GET", resp.Header.Get("Allow"))
	})
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var dash models.DashboardStats
	resp := getJSON(t, srv.URL+"/api/v1/stats", &dash)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, dash.TotalEvents)
	assert.Equal(t, []string{"s1", "s2"}, dash.ActiveSessions)
	assert.Equal(t, "s2", dash.RecentSessionID)
}

func TestSessionsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	t.Run("summaries", func(t *testing.T) {
		var body struct {
			Sessions []models.SessionSummary `json:"sessions"`
			Total    int                     `json:"total"`
		}
		resp := getJSON(t, srv.URL+"/api/v1/sessions", &body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, body.Total)
		require.Len(t, body.Sessions, 2)
		assert.Equal(t, "s2", body.Sessions[0].SessionID)
		assert.True(t, body.Sessions[0].IsActive)
	})

	t.Run("available", func(t *testing.T) {
		var body struct {
			Sessions []string `json:"sessions"`
		}
		getJSON(t, srv.URL+"/api/v1/sessions/available", &body)
		assert.Equal(t, []string{"s2", "s1"}, body.Sessions)
	})
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)

	t.Run("csv attachment", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/export?format=csv")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")
	})

	t.Run("json with filters", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/export?format=json&sessions=s1")
		require.NoError(t, err)
		defer resp.Body.Close()

		var events []models.CanonicalEvent
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
		assert.Len(t, events, 2)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		var errBody models.ErrorResponse
		resp := getJSON(t, srv.URL+"/api/v1/export?format=pdf", &errBody)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_format", errBody.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status       string `json:"status"`
		Connected    bool   `json:"connected"`
		CachedEvents int    `json:"cached_events"`
	}
	resp := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Connected)
	assert.Equal(t, 4, body.CachedEvents)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
