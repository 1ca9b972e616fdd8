// Package handlers wires the HTTP API routes to the event repository.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hooktail-systems/hooktail/internal/export"
	"github.com/hooktail-systems/hooktail/internal/logging"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/normalizer"
	"github.com/hooktail-systems/hooktail/internal/repository"
)

// Handler serves the hooktail query API.
type Handler struct {
	repo         *repository.EventRepository
	displayLimit int
	log          *logging.Logger
}

// New creates a Handler instance. displayLimit caps event list responses
// when the request does not specify its own limit.
func New(repo *repository.EventRepository, displayLimit int, log *logging.Logger) *Handler {
	return &Handler{repo: repo, displayLimit: displayLimit, log: log}
}

// Events handles GET /api/v1/events. Filter criteria come from the
// query string: types, severities, sessions (comma-separated), q and
// limit.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_criteria", err.Error())
		return
	}
	events, err := h.repo.Query(r.Context(), criteria)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	limit := h.displayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
	}
	total := len(events)
	if len(events) > limit {
		events = events[:limit]
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	stats, err := h.repo.DashboardStats(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "stats_unavailable", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Sessions handles GET /api/v1/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	summaries, err := h.repo.SessionSummaries(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "sessions_unavailable", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": summaries,
		"total":    len(summaries),
	})
}

// AvailableSessions handles GET /api/v1/sessions/available.
func (h *Handler) AvailableSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	sessions, err := h.repo.AvailableSessions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "sessions_unavailable", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// Export handles GET /api/v1/export. The format query parameter selects
// json or csv; the filter parameters match /api/v1/events.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_format", err.Error())
		return
	}
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_criteria", err.Error())
		return
	}
	events, err := h.repo.Query(r.Context(), criteria)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(format, time.Now())))
	if err := export.Write(w, events, format); err != nil {
		h.log.Error("export write failed", logging.Error(err))
	}
}

// Health handles GET /healthz for liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	count, err := h.repo.CountAll(r.Context())
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "cache_unavailable", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"connected":     h.repo.IsConnected(),
		"cached_events": count,
	})
}

func criteriaFromQuery(r *http.Request) (models.FilterCriteria, error) {
	q := r.URL.Query()
	criteria := models.FilterCriteria{
		SessionIDs:  splitParam(q.Get("sessions")),
		SearchQuery: strings.TrimSpace(q.Get("q")),
	}
	for _, raw := range splitParam(q.Get("types")) {
		criteria.Types = append(criteria.Types, normalizer.ParseHookType(raw))
	}
	for _, raw := range splitParam(q.Get("severities")) {
		switch sev := models.Severity(strings.ToUpper(raw)); sev {
		case models.SeverityInfo, models.SeverityWarning, models.SeverityError, models.SeverityCritical:
			criteria.Severities = append(criteria.Severities, sev)
		default:
			return models.FilterCriteria{}, fmt.Errorf("unknown severity %q", raw)
		}
	}
	return criteria, nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method is not allowed")
}
