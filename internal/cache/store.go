// Package cache provides the durable local event store backing all reads.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hooktail-systems/hooktail/internal/models"
)

// ErrEventNotFound is returned when a lookup misses.
var ErrEventNotFound = errors.New("cache: event not found")

// Query narrows a record read. Zero-value fields are ignored. Results are
// ordered by timestamp descending, sequence descending.
type Query struct {
	SessionIDs []string
	HookTypes  []string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// ToolCount pairs a tool name with its invocation count.
type ToolCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store is the durable keyed record store. Writes are idempotent on ID:
// re-inserting an existing id overwrites the row instead of duplicating it.
type Store interface {
	// Insert upserts a single record.
	Insert(ctx context.Context, rec models.EventRecord) error

	// InsertBatch upserts records inside a single transaction.
	InsertBatch(ctx context.Context, recs []models.EventRecord) error

	// Get returns the record with the given id, or ErrEventNotFound.
	Get(ctx context.Context, id string) (models.EventRecord, error)

	// Delete removes the record with the given id. Missing ids are a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan removes records with timestamps before cutoff and
	// returns the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOldest removes the n oldest records and returns the number
	// removed. Used by retention eviction.
	DeleteOldest(ctx context.Context, n int) (int64, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Query returns records matching q.
	Query(ctx context.Context, q Query) ([]models.EventRecord, error)

	// CountAll returns the total number of records.
	CountAll(ctx context.Context) (int, error)

	// AverageExecutionTime returns the mean execution time in ms, 0 when
	// the store is empty.
	AverageExecutionTime(ctx context.Context) (float64, error)

	// EventsPerHour returns the number of events in the trailing hour.
	EventsPerHour(ctx context.Context) (int, error)

	// SuccessRate returns the percentage of records with a success
	// status, 0 when the store is empty.
	SuccessRate(ctx context.Context) (float64, error)

	// MostActiveSession returns the session id with the most records,
	// "" when the store is empty.
	MostActiveSession(ctx context.Context) (string, error)

	// TopToolNames returns the n most frequent tool names.
	TopToolNames(ctx context.Context, n int) ([]ToolCount, error)

	// Close releases the underlying storage handle.
	Close() error
}
