package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooktail-systems/hooktail/internal/cache"
	"github.com/hooktail-systems/hooktail/internal/connector"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/repository"
	"github.com/hooktail-systems/hooktail/pkg/messaging"
)

type fakeSubscription struct{ subject string }

func (s *fakeSubscription) Unsubscribe() error { return nil }
func (s *fakeSubscription) Subject() string    { return s.subject }
func (s *fakeSubscription) IsValid() bool      { return true }

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	handler   messaging.Handler
	subject   string
}

func (c *fakeClient) Publish(ctx context.Context, subject string, data []byte) error { return nil }
func (c *fakeClient) PublishJSON(ctx context.Context, subject string, data any) error {
	return nil
}
func (c *fakeClient) Subscribe(subject string, handler messaging.Handler) (messaging.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subject = subject
	c.handler = handler
	return &fakeSubscription{subject: subject}, nil
}
func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
func (c *fakeClient) Drain() error { return nil }
func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeClient) deliver(t *testing.T, raw models.RawEventPayload) {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	c.mu.Lock()
	handler := c.handler
	subject := c.subject
	c.mu.Unlock()
	require.NotNil(t, handler)
	_ = handler(context.Background(), &messaging.Message{Subject: subject, Data: data})
}

type fixture struct {
	repo     *repository.EventRepository
	client   *fakeClient
	store    cache.Store
	onClosed func(error)
}

func newFixture(t *testing.T, maxEvents int) *fixture {
	t.Helper()
	f := &fixture{client: &fakeClient{}, store: cache.NewMemoryStore()}

	dial := func(cfg connector.Config, onClosed func(error)) (messaging.Client, error) {
		f.onClosed = onClosed
		f.client.mu.Lock()
		f.client.connected = true
		f.client.mu.Unlock()
		return f.client, nil
	}
	conn := connector.NewWithDialer(connector.Config{Subject: "hooks.events", Buffer: 8}, dial, nil)
	f.repo = repository.New(conn, f.store, maxEvents, nil)
	return f
}

func rawEvent(id, session string, seq int64) models.RawEventPayload {
	return models.RawEventPayload{
		ID:        id,
		HookType:  "pre_tool_use",
		Timestamp: time.Now().UTC().Add(time.Duration(seq) * time.Second).Format(time.RFC3339Nano),
		SessionID: session,
		Sequence:  seq,
		Core:      models.RawCore{Status: models.StatusSuccess, ExecutionTimeMS: 50},
		Payload:   models.RawPayload{ToolName: "Bash", ToolInput: "make test"},
	}
}

func recv(t *testing.T, events <-chan models.CanonicalEvent) models.CanonicalEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.CanonicalEvent{}
	}
}

func TestLiveEvents(t *testing.T) {
	t.Run("normalizes persists and yields in order", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		require.NoError(t, f.repo.Connect(ctx))

		events, err := f.repo.LiveEvents(ctx)
		require.NoError(t, err)

		f.client.deliver(t, rawEvent("ev-1", "s1", 1))
		f.client.deliver(t, rawEvent("ev-2", "s1", 2))

		first := recv(t, events)
		assert.Equal(t, "ev-1", first.ID)
		assert.Equal(t, models.HookPreToolUse, first.Type)
		assert.Equal(t, "Tool Use: Bash", first.Title)
		assert.Equal(t, "ev-2", recv(t, events).ID)

		rec, err := f.store.Get(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, "s1", rec.SessionID)
	})

	t.Run("assigns an id when the payload has none", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		require.NoError(t, f.repo.Connect(ctx))

		events, err := f.repo.LiveEvents(ctx)
		require.NoError(t, err)

		raw := rawEvent("", "s1", 1)
		f.client.deliver(t, raw)

		ev := recv(t, events)
		assert.NotEmpty(t, ev.ID)

		_, err = f.store.Get(ctx, ev.ID)
		assert.NoError(t, err, "persisted under the assigned id")
	})

	t.Run("malformed timestamp falls back and stays queryable", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		require.NoError(t, f.repo.Connect(ctx))

		events, err := f.repo.LiveEvents(ctx)
		require.NoError(t, err)

		raw := rawEvent("ev-1", "s1", 1)
		raw.Timestamp = "banana"
		before := time.Now()
		f.client.deliver(t, raw)

		ev := recv(t, events)
		assert.False(t, ev.Timestamp.Before(before.Add(-time.Second)))
		assert.False(t, ev.Timestamp.After(time.Now().Add(time.Second)))
	})

	t.Run("second pipeline is rejected", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		require.NoError(t, f.repo.Connect(ctx))

		_, err := f.repo.LiveEvents(ctx)
		require.NoError(t, err)
		_, err = f.repo.LiveEvents(ctx)
		assert.ErrorIs(t, err, repository.ErrIngestActive)
	})

	t.Run("requires a connection", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.repo.LiveEvents(context.Background())
		assert.ErrorIs(t, err, connector.ErrNotConnected)
	})

	t.Run("closes on disconnect without error", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		require.NoError(t, f.repo.Connect(ctx))

		events, err := f.repo.LiveEvents(ctx)
		require.NoError(t, err)

		f.repo.Disconnect()
		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for close")
		}
		assert.Eventually(t, func() bool { return f.repo.LastError() == nil }, time.Second, 10*time.Millisecond)
	})

	t.Run("stream fault surfaces through LastError", func(t *testing.T) {
		f := newFixture(t, 0)
		ctx := context.Background()
		require.NoError(t, f.repo.Connect(ctx))

		events, err := f.repo.LiveEvents(ctx)
		require.NoError(t, err)

		transportErr := errors.New("broker lost")
		f.onClosed(transportErr)

		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for close")
		}
		assert.Eventually(t, func() bool {
			return errors.Is(f.repo.LastError(), transportErr)
		}, time.Second, 10*time.Millisecond)
	})
}

func TestRetention(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	require.NoError(t, f.repo.Connect(ctx))

	events, err := f.repo.LiveEvents(ctx)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		f.client.deliver(t, rawEvent(fmt.Sprintf("ev-%d", i), "s1", int64(i)))
		recv(t, events)
	}

	count, err := f.repo.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// the oldest three are gone, the newest five remain
	_, err = f.store.Get(ctx, "ev-0")
	assert.ErrorIs(t, err, cache.ErrEventNotFound)
	_, err = f.store.Get(ctx, "ev-7")
	assert.NoError(t, err)
}

func TestReadSurface(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.repo.Connect(ctx))

	events, err := f.repo.LiveEvents(ctx)
	require.NoError(t, err)

	blocked := rawEvent("ev-blocked", "s2", 3)
	blocked.Core.Status = models.StatusBlocked
	for _, raw := range []models.RawEventPayload{
		rawEvent("ev-1", "s1", 1),
		rawEvent("ev-2", "s1", 2),
		blocked,
	} {
		f.client.deliver(t, raw)
		recv(t, events)
	}

	t.Run("query with criteria", func(t *testing.T) {
		got, err := f.repo.Query(ctx, models.FilterCriteria{SessionIDs: []string{"s1"}})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("filter stats", func(t *testing.T) {
		fs, err := f.repo.FilterStats(ctx, models.FilterCriteria{
			Severities: []models.Severity{models.SeverityCritical},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, fs.TotalEvents)
		assert.Equal(t, 1, fs.FilteredEvents)
	})

	t.Run("available sessions", func(t *testing.T) {
		sessions, err := f.repo.AvailableSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"s2", "s1"}, sessions)
	})

	t.Run("dashboard stats", func(t *testing.T) {
		dash, err := f.repo.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, dash.TotalEvents)
		assert.Equal(t, 1, dash.CriticalCount)
		assert.Equal(t, "s2", dash.RecentSessionID)
	})

	t.Run("session summaries", func(t *testing.T) {
		sums, err := f.repo.SessionSummaries(ctx)
		require.NoError(t, err)
		require.Len(t, sums, 2)
		assert.Equal(t, "s2", sums[0].SessionID)
		assert.True(t, sums[0].IsActive)
	})

	t.Run("store proxies", func(t *testing.T) {
		avg, err := f.repo.AverageExecutionTime(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, avg, 0.001)

		rate, err := f.repo.SuccessRate(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 66.666, rate, 0.01)

		session, err := f.repo.MostActiveSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "s1", session)

		perHour, err := f.repo.EventsPerHour(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, perHour)

		tools, err := f.repo.TopToolNames(ctx, 1)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "Bash", tools[0].Name)
	})
}
