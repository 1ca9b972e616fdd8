// Package seeder publishes synthetic hook events to the stream for
// development and demos.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/hooktail-systems/hooktail/internal/logging"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/normalizer"
	"github.com/hooktail-systems/hooktail/pkg/messaging"
)

// Config controls a seeding run.
type Config struct {
	Subject  string
	Count    int
	Sessions int
	Interval time.Duration
	Seed     int64
}

// Seeder generates fake hook events and publishes them.
type Seeder struct {
	client messaging.Client
	cfg    Config
	log    *logging.Logger
	faker  *gofakeit.Faker
	rng    *rand.Rand

	sessions []string
	seq      map[string]int64
}

// New creates a Seeder publishing on client. Seed 0 picks a time-based
// seed.
func New(client messaging.Client, cfg Config, log *logging.Logger) *Seeder {
	if cfg.Count <= 0 {
		cfg.Count = 100
	}
	if cfg.Sessions <= 0 {
		cfg.Sessions = 3
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if log == nil {
		log = logging.Default()
	}
	s := &Seeder{
		client: client,
		cfg:    cfg,
		log:    log,
		faker:  gofakeit.New(cfg.Seed),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		seq:    make(map[string]int64),
	}
	for i := 0; i < cfg.Sessions; i++ {
		s.sessions = append(s.sessions, uuid.NewString())
	}
	return s
}

// Run publishes cfg.Count events, pausing cfg.Interval between
// events. It returns early when ctx is cancelled.
func (s *Seeder) Run(ctx context.Context) error {
	s.log.Info("seeding events",
		logging.Subject(s.cfg.Subject),
		logging.Count(s.cfg.Count),
		slog.Int("sessions", s.cfg.Sessions))

	for i := 0; i < s.cfg.Count; i++ {
		raw := s.Generate()
		if err := s.client.PublishJSON(ctx, s.cfg.Subject, raw); err != nil {
			return fmt.Errorf("publish event %d: %w", i, err)
		}
		if s.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.Interval):
			}
		}
	}
	s.log.Info("seeding complete", logging.Count(s.cfg.Count))
	return nil
}

// wireHookTypes lists the hook_type values the runtime emits on the wire.
var wireHookTypes = []string{
	"session_start",
	"user_prompt_submit",
	"pre_tool_use",
	"post_tool_use",
	"notification",
	"stop",
	"subagent_stop",
	"pre_compact",
}

var toolNames = []string{"Bash", "Read", "Write", "Edit", "Grep", "Glob", "WebFetch"}

var notificationTypes = []string{"permission_request", "idle_timeout", "plan_ready"}

// Generate produces one fake raw hook event. Roughly one event in
// twenty carries a malformed timestamp and one in twenty an unknown
// hook type, so downstream fallbacks see real traffic.
func (s *Seeder) Generate() models.RawEventPayload {
	session := s.sessions[s.rng.Intn(len(s.sessions))]
	s.seq[session]++

	hook := wireHookTypes[s.rng.Intn(len(wireHookTypes))]
	if s.rng.Intn(20) == 0 {
		hook = s.faker.Word()
	}

	ts := time.Now().Add(-time.Duration(s.rng.Intn(3600)) * time.Second).Format(time.RFC3339Nano)
	if s.rng.Intn(20) == 0 {
		ts = "not-a-timestamp"
	}

	status := models.StatusSuccess
	switch s.rng.Intn(10) {
	case 0:
		status = models.StatusError
	case 1:
		status = models.StatusBlocked
	}

	raw := models.RawEventPayload{
		ID:        uuid.NewString(),
		HookType:  hook,
		Timestamp: ts,
		SessionID: session,
		Sequence:  s.seq[session],
		Core: models.RawCore{
			Status:          status,
			ExecutionTimeMS: int64(s.rng.Intn(8000)),
		},
		Context: models.RawContext{
			Platform:  s.faker.RandomString([]string{"darwin", "linux", "windows"}),
			GitBranch: s.faker.RandomString([]string{"main", "develop", "feature/ingest", "fix/retry"}),
			GitStatus: s.faker.RandomString([]string{"clean", "dirty"}),
			Cwd:       "/home/" + s.faker.Username() + "/" + s.faker.Word(),
		},
	}

	switch normalizer.ParseHookType(hook) {
	case models.HookUserPromptSubmit:
		raw.Payload.Prompt = s.faker.Sentence(s.rng.Intn(30) + 3)
	case models.HookPreToolUse:
		raw.Payload.ToolName = toolNames[s.rng.Intn(len(toolNames))]
		raw.Payload.ToolInput = s.faker.Sentence(s.rng.Intn(10) + 2)
	case models.HookPostToolUse:
		raw.Payload.ToolName = toolNames[s.rng.Intn(len(toolNames))]
		raw.Payload.ToolResponse = s.faker.Sentence(s.rng.Intn(40) + 2)
	case models.HookNotification:
		raw.Payload.NotificationType = notificationTypes[s.rng.Intn(len(notificationTypes))]
		raw.Payload.Message = s.faker.Sentence(s.rng.Intn(8) + 2)
	case models.HookPreCompact:
		raw.Payload.CompactReason = s.faker.RandomString([]string{"context window full", "manual compaction"})
	}

	return raw
}
