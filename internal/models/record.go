package models

import "time"

// EventRecord is the persisted cache layout of a hook event: one row per
// event keyed by ID, with the nested core, payload and context groups
// flattened into group-prefixed columns. Timestamp holds the resolved
// instant rather than the raw wire string so rehydration is deterministic.
type EventRecord struct {
	ID        string
	HookType  string
	Timestamp time.Time
	SessionID string
	Sequence  int64

	CoreStatus          string
	CoreExecutionTimeMS int64

	PayloadPrompt           string
	PayloadToolName         string
	PayloadToolInput        string
	PayloadToolResponse     string
	PayloadNotificationType string
	PayloadCompactReason    string
	PayloadMessage          string

	ContextPlatform  string
	ContextGitBranch string
	ContextGitStatus string
	ContextCwd       string
}

// NewEventRecord flattens a raw payload into its persisted form. resolved
// is the instant produced by the normalizer's timestamp chain.
func NewEventRecord(raw RawEventPayload, resolved time.Time) EventRecord {
	return EventRecord{
		ID:        raw.ID,
		HookType:  raw.HookType,
		Timestamp: resolved.UTC(),
		SessionID: raw.SessionID,
		Sequence:  raw.Sequence,

		CoreStatus:          raw.Core.Status,
		CoreExecutionTimeMS: raw.Core.ExecutionTimeMS,

		PayloadPrompt:           raw.Payload.Prompt,
		PayloadToolName:         raw.Payload.ToolName,
		PayloadToolInput:        raw.Payload.ToolInput,
		PayloadToolResponse:     raw.Payload.ToolResponse,
		PayloadNotificationType: raw.Payload.NotificationType,
		PayloadCompactReason:    raw.Payload.CompactReason,
		PayloadMessage:          raw.Payload.Message,

		ContextPlatform:  raw.Context.Platform,
		ContextGitBranch: raw.Context.GitBranch,
		ContextGitStatus: raw.Context.GitStatus,
		ContextCwd:       raw.Context.Cwd,
	}
}

// Raw reconstructs the wire payload from the persisted row. The timestamp
// is rendered as RFC 3339 so a rehydrating normalizer parses it on the
// first step of the resolution chain.
func (r EventRecord) Raw() RawEventPayload {
	return RawEventPayload{
		ID:        r.ID,
		HookType:  r.HookType,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		SessionID: r.SessionID,
		Sequence:  r.Sequence,
		Core: RawCore{
			Status:          r.CoreStatus,
			ExecutionTimeMS: r.CoreExecutionTimeMS,
		},
		Payload: RawPayload{
			Prompt:           r.PayloadPrompt,
			ToolName:         r.PayloadToolName,
			ToolInput:        r.PayloadToolInput,
			ToolResponse:     r.PayloadToolResponse,
			NotificationType: r.PayloadNotificationType,
			CompactReason:    r.PayloadCompactReason,
			Message:          r.PayloadMessage,
		},
		Context: RawContext{
			Platform:  r.ContextPlatform,
			GitBranch: r.ContextGitBranch,
			GitStatus: r.ContextGitStatus,
			Cwd:       r.ContextCwd,
		},
	}
}
