package seeder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/normalizer"
	"github.com/hooktail-systems/hooktail/internal/seeder"
	"github.com/hooktail-systems/hooktail/pkg/messaging"
)

type capturingClient struct {
	mu        sync.Mutex
	subjects  []string
	published []models.RawEventPayload
	failAfter int
}

func (c *capturingClient) Publish(context.Context, string, []byte) error { return nil }

func (c *capturingClient) PublishJSON(_ context.Context, subject string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter > 0 && len(c.published) >= c.failAfter {
		return errors.New("broker gone")
	}
	raw, ok := data.(models.RawEventPayload)
	if !ok {
		return errors.New("unexpected payload type")
	}
	c.subjects = append(c.subjects, subject)
	c.published = append(c.published, raw)
	return nil
}

func (c *capturingClient) Subscribe(string, messaging.Handler) (messaging.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (c *capturingClient) IsConnected() bool { return true }
func (c *capturingClient) Drain() error      { return nil }
func (c *capturingClient) Close() error      { return nil }

func TestRun(t *testing.T) {
	t.Run("publishes the configured count on the subject", func(t *testing.T) {
		client := &capturingClient{}
		s := seeder.New(client, seeder.Config{Subject: "hooks.events", Count: 25, Sessions: 2, Seed: 42}, nil)

		require.NoError(t, s.Run(context.Background()))
		assert.Len(t, client.published, 25)
		for _, subj := range client.subjects {
			assert.Equal(t, "hooks.events", subj)
		}
	})

	t.Run("draws session ids from the configured pool", func(t *testing.T) {
		client := &capturingClient{}
		s := seeder.New(client, seeder.Config{Subject: "hooks.events", Count: 50, Sessions: 3, Seed: 7}, nil)
		require.NoError(t, s.Run(context.Background()))

		seen := map[string]bool{}
		for _, ev := range client.published {
			require.NotEmpty(t, ev.SessionID)
			seen[ev.SessionID] = true
		}
		assert.LessOrEqual(t, len(seen), 3)
		assert.Greater(t, len(seen), 1)
	})

	t.Run("sequence increases per session", func(t *testing.T) {
		client := &capturingClient{}
		s := seeder.New(client, seeder.Config{Subject: "hooks.events", Count: 40, Sessions: 2, Seed: 11}, nil)
		require.NoError(t, s.Run(context.Background()))

		last := map[string]int64{}
		for _, ev := range client.published {
			assert.Equal(t, last[ev.SessionID]+1, ev.Sequence)
			last[ev.SessionID] = ev.Sequence
		}
	})

	t.Run("stops on publish failure", func(t *testing.T) {
		client := &capturingClient{failAfter: 5}
		s := seeder.New(client, seeder.Config{Subject: "hooks.events", Count: 20, Seed: 3}, nil)

		err := s.Run(context.Background())
		require.Error(t, err)
		assert.Len(t, client.published, 5)
	})

	t.Run("honors context cancellation between events", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &capturingClient{}
		s := seeder.New(client, seeder.Config{
			Subject:  "hooks.events",
			Count:    100,
			Interval: time.Millisecond,
			Seed:     9,
		}, nil)

		err := s.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, len(client.published), 100)
	})
}

func TestGenerate(t *testing.T) {
	client := &capturingClient{}
	s := seeder.New(client, seeder.Config{Sessions: 2, Seed: 1}, nil)

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		other := seeder.New(&capturingClient{}, seeder.Config{Sessions: 2, Seed: 99}, nil)
		again := seeder.New(&capturingClient{}, seeder.Config{Sessions: 2, Seed: 99}, nil)
		for i := 0; i < 10; i++ {
			a, b := other.Generate(), again.Generate()
			assert.Equal(t, a.HookType, b.HookType)
			assert.Equal(t, a.Sequence, b.Sequence)
			assert.Equal(t, a.Core.Status, b.Core.Status)
		}
	})

	t.Run("events are well formed", func(t *testing.T) {
		norm := normalizer.New()
		for i := 0; i < 200; i++ {
			raw := s.Generate()
			assert.NotEmpty(t, raw.ID)
			assert.NotEmpty(t, raw.HookType)
			assert.NotEmpty(t, raw.SessionID)
			assert.NotEmpty(t, raw.Context.Platform)

			ev := norm.Normalize(raw)
			assert.NotEmpty(t, ev.Title)
			assert.NotEmpty(t, ev.Message)
			assert.False(t, ev.Timestamp.IsZero())
		}
	})

	t.Run("produces fallback traffic", func(t *testing.T) {
		fresh := seeder.New(&capturingClient{}, seeder.Config{Sessions: 2, Seed: 5}, nil)
		var malformed, unknown int
		for i := 0; i < 500; i++ {
			raw := fresh.Generate()
			if raw.Timestamp == "not-a-timestamp" {
				malformed++
			}
			if normalizer.ParseHookType(raw.HookType) == models.HookCustom {
				unknown++
			}
		}
		assert.Greater(t, malformed, 0)
		assert.Greater(t, unknown, 0)
	})
}
