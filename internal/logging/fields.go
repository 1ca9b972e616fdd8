package logging

import "log/slog"

// Common field names for consistent logging across packages.
const (
	FieldEventID   = "event_id"
	FieldSessionID = "session_id"
	FieldHookType  = "hook_type"
	FieldSubject   = "subject"
	FieldBackend   = "backend"
	FieldCount     = "count"
	FieldError     = "error"
)

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// SessionID returns a slog attribute for a session ID.
func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// HookType returns a slog attribute for a hook type.
func HookType(t string) slog.Attr {
	return slog.String(FieldHookType, t)
}

// Subject returns a slog attribute for a pub/sub subject.
func Subject(s string) slog.Attr {
	return slog.String(FieldSubject, s)
}

// Backend returns a slog attribute for a cache backend name.
func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
