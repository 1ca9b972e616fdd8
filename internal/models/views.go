package models

import "time"

// FilterCriteria selects a subset of cached events. The zero value is the
// identity filter: every stage with an empty criterion set is a no-op.
type FilterCriteria struct {
	Types       []HookType `json:"types,omitempty"`
	Severities  []Severity `json:"severities,omitempty"`
	SessionIDs  []string   `json:"session_ids,omitempty"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// IsEmpty reports whether the criteria selects everything.
func (c FilterCriteria) IsEmpty() bool {
	return len(c.Types) == 0 && len(c.Severities) == 0 &&
		len(c.SessionIDs) == 0 && c.SearchQuery == ""
}

// SessionSummary aggregates the cached events of one session.
type SessionSummary struct {
	SessionID              string           `json:"session_id"`
	StartTime              *time.Time       `json:"start_time,omitempty"`
	EndTime                *time.Time       `json:"end_time,omitempty"`
	TotalEvents            int              `json:"total_events"`
	EventsByType           map[HookType]int `json:"events_by_type"`
	EventsByStatus         map[string]int   `json:"events_by_status"`
	AverageExecutionTimeMS float64          `json:"average_execution_time_ms"`
	Platform               string           `json:"platform,omitempty"`
	GitBranch              string           `json:"git_branch,omitempty"`
	IsActive               bool             `json:"is_active"`
}

// DashboardStats is the process-wide dashboard aggregate. It is a view,
// recomputed on demand, never stored.
type DashboardStats struct {
	TotalEvents     int      `json:"total_events"`
	CriticalCount   int      `json:"critical_count"`
	WarningCount    int      `json:"warning_count"`
	SuccessRate     float64  `json:"success_rate"`
	ActiveHookTypes int      `json:"active_hook_types"`
	ActiveSessions  []string `json:"active_sessions"`
	RecentSessionID string   `json:"recent_session_id,omitempty"`
}

// ErrorResponse is the JSON body returned by API error paths.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FilterStats summarizes a filter run for the presentation layer.
type FilterStats struct {
	TotalEvents    int              `json:"total_events"`
	FilteredEvents int              `json:"filtered_events"`
	BySeverity     map[Severity]int `json:"by_severity"`
}
