package models

import "time"

// HookType classifies a hook event by the runtime lifecycle point that
// emitted it.
type HookType string

const (
	HookSessionStart     HookType = "SESSION_START"
	HookUserPromptSubmit HookType = "USER_PROMPT_SUBMIT"
	HookPreToolUse       HookType = "PRE_TOOL_USE"
	HookPostToolUse      HookType = "POST_TOOL_USE"
	HookNotification     HookType = "NOTIFICATION"
	HookStop             HookType = "STOP_HOOK"
	HookSubAgentStop     HookType = "SUB_AGENT_STOP_HOOK"
	HookPreCompact       HookType = "PRE_COMPACT"
	HookCustom           HookType = "CUSTOM"
)

// AllHookTypes lists every known hook type, in lifecycle order.
var AllHookTypes = []HookType{
	HookSessionStart,
	HookUserPromptSubmit,
	HookPreToolUse,
	HookPostToolUse,
	HookNotification,
	HookStop,
	HookSubAgentStop,
	HookPreCompact,
	HookCustom,
}

// Severity is the derived urgency classification of an event.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Core status values as emitted by the runtime.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusBlocked = "blocked"
)

// RawEventPayload is the wire format of a hook event as published by the
// agent runtime. Fields are source-defined; optional payload and context
// fields are empty strings when absent.
type RawEventPayload struct {
	ID        string     `json:"id"`
	HookType  string     `json:"hook_type"`
	Timestamp string     `json:"timestamp"`
	SessionID string     `json:"session_id"`
	Sequence  int64      `json:"sequence"`
	Core      RawCore    `json:"core"`
	Payload   RawPayload `json:"payload"`
	Context   RawContext `json:"context"`
}

// RawCore carries the execution outcome of the hook.
type RawCore struct {
	Status          string `json:"status"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
}

// RawPayload carries the hook-specific fields.
type RawPayload struct {
	Prompt           string `json:"prompt,omitempty"`
	ToolName         string `json:"tool_name,omitempty"`
	ToolInput        string `json:"tool_input,omitempty"`
	ToolResponse     string `json:"tool_response,omitempty"`
	NotificationType string `json:"notification_type,omitempty"`
	CompactReason    string `json:"compact_reason,omitempty"`
	Message          string `json:"message,omitempty"`
}

// RawContext carries the environment the event was emitted from.
type RawContext struct {
	Platform  string `json:"platform,omitempty"`
	GitBranch string `json:"git_branch,omitempty"`
	GitStatus string `json:"git_status,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
}

// Metadata keys that are always present on a canonical event.
const (
	MetaSessionID       = "session_id"
	MetaSequence        = "sequence"
	MetaStatus          = "status"
	MetaExecutionTimeMS = "execution_time_ms"
	MetaPrompt          = "prompt"
	MetaToolName        = "tool_name"
	MetaToolInput       = "tool_input"
	MetaToolResponse    = "tool_response"
	MetaNotification    = "notification_type"
	MetaCompactReason   = "compact_reason"
	MetaMessage         = "message"
	MetaPlatform        = "platform"
	MetaGitBranch       = "git_branch"
	MetaGitStatus       = "git_status"
	MetaCwd             = "cwd"
)

// CanonicalEvent is the normalized form of a hook event. It is built once
// by the normalizer (from a live payload or a rehydrated cache record) and
// never mutated afterwards.
type CanonicalEvent struct {
	ID        string            `json:"id"`
	Type      HookType          `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Severity  Severity          `json:"severity"`
	Metadata  map[string]string `json:"metadata"`
}

// Meta returns the metadata value for key, or "" when absent.
func (e CanonicalEvent) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// SessionID is a shortcut for the session the event belongs to.
func (e CanonicalEvent) SessionID() string {
	return e.Meta(MetaSessionID)
}
