// Package server builds the hooktail HTTP API server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hooktail-systems/hooktail/internal/handlers"
)

// NewRouter constructs a ServeMux with the API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events", h.Events)
	mux.HandleFunc("/api/v1/stats", h.Stats)
	mux.HandleFunc("/api/v1/sessions", h.Sessions)
	mux.HandleFunc("/api/v1/sessions/available", h.AvailableSessions)
	mux.HandleFunc("/api/v1/export", h.Export)
	mux.HandleFunc("/healthz", h.Health)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// New wraps the router in an http.Server with sane timeouts.
func New(addr string, h *handlers.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Shutdown gracefully stops srv, waiting up to timeout for in-flight
// requests to finish.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
