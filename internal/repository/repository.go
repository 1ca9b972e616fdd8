// Package repository fuses the live hook stream with the durable cache.
// The EventRepository is the single owner of the connector and the store:
// it is the only cache mutator, and every read surface goes through it.
package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hooktail-systems/hooktail/internal/cache"
	"github.com/hooktail-systems/hooktail/internal/connector"
	"github.com/hooktail-systems/hooktail/internal/filter"
	"github.com/hooktail-systems/hooktail/internal/logging"
	"github.com/hooktail-systems/hooktail/internal/metrics"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/normalizer"
	"github.com/hooktail-systems/hooktail/internal/stats"
)

// ErrIngestActive is returned when LiveEvents is called while a previous
// ingestion pipeline is still running; one pipeline per repository.
var ErrIngestActive = errors.New("repository: ingestion pipeline already active")

// EventRepository wires connector, normalizer and cache together and
// exposes the merged read surface.
type EventRepository struct {
	conn  *connector.Connector
	store cache.Store
	norm  *normalizer.Normalizer
	log   *logging.Logger

	// maxEvents is the retention limit; the oldest cached events are
	// evicted on the ingest path once the cache grows past it.
	maxEvents int

	mu        sync.Mutex
	ingesting bool
	lastErr   error
}

// New builds a repository around an explicit connector and store. No
// globals, no container: callers construct the collaborators once and
// hand them over.
func New(conn *connector.Connector, store cache.Store, maxEvents int, log *logging.Logger) *EventRepository {
	if log == nil {
		log = logging.Default()
	}
	return &EventRepository{
		conn:      conn,
		store:     store,
		norm:      normalizer.New(),
		log:       log,
		maxEvents: maxEvents,
	}
}

// Connect proxies to the connector and clears any stale error state.
func (r *EventRepository) Connect(ctx context.Context) error {
	r.mu.Lock()
	r.lastErr = nil
	r.mu.Unlock()

	if err := r.conn.Connect(ctx); err != nil {
		r.setLastErr(err)
		return err
	}
	return nil
}

// Disconnect proxies to the connector; the live sequence terminates.
func (r *EventRepository) Disconnect() {
	r.conn.Disconnect()
}

// IsConnected proxies to the connector.
func (r *EventRepository) IsConnected() bool {
	return r.conn.IsConnected()
}

// States exposes connection state transitions, including the terminating
// error of an unexpected stream fault.
func (r *EventRepository) States() <-chan connector.StateChange {
	return r.conn.States()
}

// LastError returns the most recent connection or stream fault, nil when
// healthy. Connect clears it.
func (r *EventRepository) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// LiveEvents starts the ingestion pipeline: every raw payload from the
// subscription is normalized, persisted, and yielded in arrival order.
// A cache write failure is logged and counted but never withholds the
// event from the caller. The returned channel closes when the stream
// terminates or ctx is cancelled; reconnecting is the caller's decision.
func (r *EventRepository) LiveEvents(ctx context.Context) (<-chan models.CanonicalEvent, error) {
	r.mu.Lock()
	if r.ingesting {
		r.mu.Unlock()
		return nil, ErrIngestActive
	}
	r.ingesting = true
	r.mu.Unlock()

	raws, err := r.conn.Subscribe()
	if err != nil {
		r.mu.Lock()
		r.ingesting = false
		r.mu.Unlock()
		return nil, err
	}

	out := make(chan models.CanonicalEvent, 64)
	go r.ingest(ctx, raws, out)
	return out, nil
}

// ingest is the serialized consumer pipeline: normalize, cache-write,
// evict, notify, one payload at a time in arrival order.
func (r *EventRepository) ingest(ctx context.Context, raws <-chan models.RawEventPayload, out chan<- models.CanonicalEvent) {
	defer func() {
		r.mu.Lock()
		r.ingesting = false
		r.mu.Unlock()
		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-raws:
			if !ok {
				// Clean disconnects leave no terminating error behind.
				if err := r.conn.LastError(); err != nil {
					metrics.StreamDisconnects.Inc()
					r.setLastErr(err)
				}
				return
			}

			ev := r.ingestOne(ctx, raw)

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ingestOne normalizes and persists a single payload.
func (r *EventRepository) ingestOne(ctx context.Context, raw models.RawEventPayload) models.CanonicalEvent {
	start := time.Now()

	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}

	ts, parsed := r.norm.ResolveTimestamp(raw.Timestamp)
	if !parsed {
		metrics.TimestampFallbacks.Inc()
	}

	rec := models.NewEventRecord(raw, ts)
	ev := r.norm.Rehydrate(rec)

	metrics.NormalizationDuration.Observe(time.Since(start).Seconds())
	metrics.EventsIngested.WithLabelValues(string(ev.Type)).Inc()

	if err := r.store.Insert(ctx, rec); err != nil {
		// At-least-delivered, best-effort-persisted: the event still
		// reaches live subscribers.
		metrics.CacheWriteErrors.Inc()
		r.log.Warn("cache write failed",
			logging.EventID(ev.ID), logging.SessionID(ev.SessionID()), logging.Error(err))
		return ev
	}

	r.enforceRetention(ctx)
	return ev
}

// enforceRetention evicts the oldest events past the retention limit.
// Eviction runs inline on the ingest path so the cache never overshoots
// the limit by more than one burst.
func (r *EventRepository) enforceRetention(ctx context.Context) {
	if r.maxEvents <= 0 {
		return
	}

	count, err := r.store.CountAll(ctx)
	if err != nil {
		return
	}
	metrics.CachedEvents.Set(float64(count))

	if count <= r.maxEvents {
		return
	}
	removed, err := r.store.DeleteOldest(ctx, count-r.maxEvents)
	if err != nil {
		r.log.Warn("retention eviction failed", logging.Error(err))
		return
	}
	metrics.EventsEvicted.Add(float64(removed))
	metrics.CachedEvents.Set(float64(count - int(removed)))
}

// Query returns the cached events matching criteria, most relevant first
// when a search query is set, most recent first otherwise.
func (r *EventRepository) Query(ctx context.Context, criteria models.FilterCriteria) ([]models.CanonicalEvent, error) {
	events, err := r.allEvents(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(events, criteria), nil
}

// FilterStats summarizes a filter run without materializing it twice for
// the caller.
func (r *EventRepository) FilterStats(ctx context.Context, criteria models.FilterCriteria) (models.FilterStats, error) {
	events, err := r.allEvents(ctx)
	if err != nil {
		return models.FilterStats{}, err
	}
	return filter.Stats(events, criteria), nil
}

// AvailableSessions lists the most recently active session ids.
func (r *EventRepository) AvailableSessions(ctx context.Context) ([]string, error) {
	events, err := r.allEvents(ctx)
	if err != nil {
		return nil, err
	}
	return filter.AvailableSessions(events), nil
}

// DashboardStats computes the process-wide dashboard aggregate.
func (r *EventRepository) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	events, err := r.allEvents(ctx)
	if err != nil {
		return models.DashboardStats{}, err
	}
	return stats.CalculateDashboardStats(events, time.Now()), nil
}

// SessionSummaries computes per-session aggregates, most recent first.
func (r *EventRepository) SessionSummaries(ctx context.Context) ([]models.SessionSummary, error) {
	events, err := r.allEvents(ctx)
	if err != nil {
		return nil, err
	}
	return stats.BuildSessionSummaries(events, time.Now()), nil
}

// CountAll proxies to the store.
func (r *EventRepository) CountAll(ctx context.Context) (int, error) {
	return r.store.CountAll(ctx)
}

// AverageExecutionTime proxies to the store.
func (r *EventRepository) AverageExecutionTime(ctx context.Context) (float64, error) {
	return r.store.AverageExecutionTime(ctx)
}

// SuccessRate proxies to the store.
func (r *EventRepository) SuccessRate(ctx context.Context) (float64, error) {
	return r.store.SuccessRate(ctx)
}

// EventsPerHour proxies to the store.
func (r *EventRepository) EventsPerHour(ctx context.Context) (int, error) {
	return r.store.EventsPerHour(ctx)
}

// MostActiveSession proxies to the store.
func (r *EventRepository) MostActiveSession(ctx context.Context) (string, error) {
	return r.store.MostActiveSession(ctx)
}

// TopToolNames proxies to the store.
func (r *EventRepository) TopToolNames(ctx context.Context, n int) ([]cache.ToolCount, error) {
	return r.store.TopToolNames(ctx, n)
}

// allEvents loads and rehydrates the cached candidate set. Each call
// reads a consistent snapshot; no transaction spans two calls.
func (r *EventRepository) allEvents(ctx context.Context) ([]models.CanonicalEvent, error) {
	recs, err := r.store.Query(ctx, cache.Query{})
	if err != nil {
		return nil, err
	}

	events := make([]models.CanonicalEvent, 0, len(recs))
	for _, rec := range recs {
		events = append(events, r.norm.Rehydrate(rec))
	}
	return events, nil
}

func (r *EventRepository) setLastErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}
