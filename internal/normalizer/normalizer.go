// Package normalizer converts raw hook payloads into canonical events.
// Normalization is deterministic: reapplying it to the same payload yields
// the same type, title, message, source and severity.
package normalizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hooktail-systems/hooktail/internal/models"
)

// maxMessageLen is the rune budget for template messages; longer values
// are truncated with a trailing ellipsis.
const maxMessageLen = 100

// fallbackMessage is used when the template field for a hook type is absent.
const fallbackMessage = "Event occurred"

// defaultSource labels events that carry no tool, git or platform context.
const defaultSource = "Agent Runtime"

// slowExecutionMS is the execution time above which a successful event is
// still flagged as a warning.
const slowExecutionMS = 5000

// hookTypeTable maps lowercase wire hook_type values to canonical types.
var hookTypeTable = map[string]models.HookType{
	"session_start":      models.HookSessionStart,
	"user_prompt_submit": models.HookUserPromptSubmit,
	"pre_tool_use":       models.HookPreToolUse,
	"post_tool_use":      models.HookPostToolUse,
	"notification":       models.HookNotification,
	"stop":               models.HookStop,
	"subagent_stop":      models.HookSubAgentStop,
	"pre_compact":        models.HookPreCompact,
}

// ParseHookType maps a wire hook_type to its canonical type.
// Unmatched values map to CUSTOM.
func ParseHookType(raw string) models.HookType {
	if t, ok := hookTypeTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return models.HookCustom
}

// Normalizer builds canonical events from raw payloads. The clock is
// injectable so the wall-clock timestamp fallback is testable.
type Normalizer struct {
	now func() time.Time
}

// New creates a Normalizer using the system clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock creates a Normalizer with a fixed clock, for tests.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize converts a raw payload into its canonical event. It never
// fails: malformed timestamps fall back to the wall clock and unknown hook
// types map to CUSTOM.
func (n *Normalizer) Normalize(raw models.RawEventPayload) models.CanonicalEvent {
	hookType := ParseHookType(raw.HookType)
	ts, _ := n.ResolveTimestamp(raw.Timestamp)

	return models.CanonicalEvent{
		ID:        raw.ID,
		Type:      hookType,
		Title:     deriveTitle(hookType, raw),
		Message:   deriveMessage(hookType, raw),
		Timestamp: ts,
		Source:    deriveSource(raw),
		Severity:  deriveSeverity(hookType, raw),
		Metadata:  buildMetadata(raw),
	}
}

// Rehydrate rebuilds the canonical event from a persisted record. The
// stored timestamp is already resolved, so the chain parses it on the
// first step and the result is identical across rehydrations.
func (n *Normalizer) Rehydrate(rec models.EventRecord) models.CanonicalEvent {
	return n.Normalize(rec.Raw())
}

// offsetLayout is the second step of the timestamp chain: a fixed pattern
// with a numeric timezone offset, as some publishers emit.
const offsetLayout = "2006-01-02 15:04:05 -0700"

// ResolveTimestamp parses a wire timestamp. The chain is RFC 3339, then
// the numeric-offset layout, then the wall clock. The boolean reports
// whether parsing succeeded; the returned instant is always concrete.
func (n *Normalizer) ResolveTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value != "" {
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return t, true
		}
		if t, err := time.Parse(offsetLayout, value); err == nil {
			return t, true
		}
	}
	return n.now(), false
}

func deriveSeverity(hookType models.HookType, raw models.RawEventPayload) models.Severity {
	switch {
	case raw.Core.Status == models.StatusError:
		return models.SeverityError
	case raw.Core.Status == models.StatusBlocked:
		return models.SeverityCritical
	case hookType == models.HookNotification:
		return models.SeverityWarning
	case raw.Core.ExecutionTimeMS > slowExecutionMS:
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

func deriveTitle(hookType models.HookType, raw models.RawEventPayload) string {
	switch hookType {
	case models.HookSessionStart:
		return "Session Started"
	case models.HookUserPromptSubmit:
		return "User Prompt"
	case models.HookPreToolUse:
		return "Tool Use: " + orUnknown(raw.Payload.ToolName)
	case models.HookPostToolUse:
		return "Tool Complete: " + orUnknown(raw.Payload.ToolName)
	case models.HookNotification:
		if raw.Payload.NotificationType != "" {
			return "Notification: " + raw.Payload.NotificationType
		}
		return "Notification"
	case models.HookStop:
		return "Session Stopped"
	case models.HookSubAgentStop:
		return "Subagent Stopped"
	case models.HookPreCompact:
		return "Context Compaction"
	default:
		if raw.HookType != "" {
			return "Hook Event: " + raw.HookType
		}
		return "Hook Event"
	}
}

func deriveMessage(hookType models.HookType, raw models.RawEventPayload) string {
	switch hookType {
	case models.HookUserPromptSubmit:
		if raw.Payload.Prompt != "" {
			return truncate(raw.Payload.Prompt, maxMessageLen)
		}
	case models.HookPreToolUse:
		if raw.Payload.ToolInput != "" {
			return truncate(raw.Payload.ToolInput, maxMessageLen)
		}
	case models.HookPostToolUse:
		if raw.Payload.ToolResponse != "" {
			return truncate(raw.Payload.ToolResponse, maxMessageLen)
		}
	case models.HookPreCompact:
		if raw.Payload.CompactReason != "" {
			return "Compacting context: " + raw.Payload.CompactReason
		}
	}
	if raw.Payload.Message != "" {
		return truncate(raw.Payload.Message, maxMessageLen)
	}
	return fallbackMessage
}

// deriveSource picks the most specific origin label available:
// tool, then git branch, then platform, then the fixed default.
func deriveSource(raw models.RawEventPayload) string {
	switch {
	case raw.Payload.ToolName != "":
		return "Tool: " + raw.Payload.ToolName
	case raw.Context.GitBranch != "":
		return "Git: " + raw.Context.GitBranch
	case raw.Context.Platform != "":
		return "Platform: " + raw.Context.Platform
	default:
		return defaultSource
	}
}

// buildMetadata assembles the always-present keys plus every optional
// payload and context field that is set on the wire.
func buildMetadata(raw models.RawEventPayload) map[string]string {
	meta := map[string]string{
		models.MetaSessionID:       raw.SessionID,
		models.MetaSequence:        strconv.FormatInt(raw.Sequence, 10),
		models.MetaStatus:          raw.Core.Status,
		models.MetaExecutionTimeMS: strconv.FormatInt(raw.Core.ExecutionTimeMS, 10),
	}

	optional := map[string]string{
		models.MetaPrompt:        raw.Payload.Prompt,
		models.MetaToolName:      raw.Payload.ToolName,
		models.MetaToolInput:     raw.Payload.ToolInput,
		models.MetaToolResponse:  raw.Payload.ToolResponse,
		models.MetaNotification:  raw.Payload.NotificationType,
		models.MetaCompactReason: raw.Payload.CompactReason,
		models.MetaMessage:       raw.Payload.Message,
		models.MetaPlatform:      raw.Context.Platform,
		models.MetaGitBranch:     raw.Context.GitBranch,
		models.MetaGitStatus:     raw.Context.GitStatus,
		models.MetaCwd:           raw.Context.Cwd,
	}
	for k, v := range optional {
		if v != "" {
			meta[k] = v
		}
	}
	return meta
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return fmt.Sprintf("%s...", string(runes[:max]))
}
