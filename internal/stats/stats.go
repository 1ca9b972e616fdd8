// Package stats computes dashboard statistics and per-session summaries
// over cached events. Everything here is a view, recomputed on demand.
package stats

import (
	"sort"
	"strconv"
	"time"

	"github.com/hooktail-systems/hooktail/internal/models"
)

// sessionActiveWindow is how recently a session must have produced an
// event to count as active. The boundary itself is inactive.
const sessionActiveWindow = 3600 * time.Second

// IsActive reports whether a session whose latest event is at last is
// active at now: strictly within the activity window, false at exactly
// the boundary and beyond.
func IsActive(last, now time.Time) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < sessionActiveWindow
}

// CalculateDashboardStats derives the process-wide dashboard aggregate
// from the cached event list. Only sessions whose latest event falls
// within the activity window at now count as active.
func CalculateDashboardStats(events []models.CanonicalEvent, now time.Time) models.DashboardStats {
	s := models.DashboardStats{
		TotalEvents:    len(events),
		ActiveSessions: []string{},
	}
	if len(events) == 0 {
		return s
	}

	var (
		infoCount  int
		types      = make(map[models.HookType]struct{})
		latest     = make(map[string]time.Time)
		recent     models.CanonicalEvent
		recentSeen bool
	)

	for _, e := range events {
		switch e.Severity {
		case models.SeverityInfo:
			infoCount++
		case models.SeverityCritical:
			s.CriticalCount++
		case models.SeverityWarning, models.SeverityError:
			// The dashboard folds errors into the warning figure.
			s.WarningCount++
		}

		types[e.Type] = struct{}{}
		if id := e.SessionID(); id != "" && e.Timestamp.After(latest[id]) {
			latest[id] = e.Timestamp
		}

		if !recentSeen || e.Timestamp.After(recent.Timestamp) {
			recent = e
			recentSeen = true
		}
	}

	for id, last := range latest {
		if IsActive(last, now) {
			s.ActiveSessions = append(s.ActiveSessions, id)
		}
	}
	sort.Strings(s.ActiveSessions)
	s.SuccessRate = float64(infoCount) / float64(len(events)) * 100
	s.ActiveHookTypes = len(types)
	s.RecentSessionID = recent.SessionID()
	return s
}

// BuildSessionSummaries groups cached events per session and derives
// counts, timing and activity. Summaries are ordered by descending
// most-recent activity.
func BuildSessionSummaries(events []models.CanonicalEvent, now time.Time) []models.SessionSummary {
	type acc struct {
		summary   models.SessionSummary
		execTotal int64
		execCount int
	}

	groups := make(map[string]*acc)
	for _, e := range events {
		id := e.SessionID()
		if id == "" {
			continue
		}

		g, ok := groups[id]
		if !ok {
			g = &acc{summary: models.SessionSummary{
				SessionID:      id,
				EventsByType:   make(map[models.HookType]int),
				EventsByStatus: make(map[string]int),
			}}
			groups[id] = g
		}

		g.summary.TotalEvents++
		g.summary.EventsByType[e.Type]++
		if status := e.Meta(models.MetaStatus); status != "" {
			g.summary.EventsByStatus[status]++
		}

		ts := e.Timestamp
		if g.summary.StartTime == nil || ts.Before(*g.summary.StartTime) {
			start := ts
			g.summary.StartTime = &start
		}
		if g.summary.EndTime == nil || ts.After(*g.summary.EndTime) {
			end := ts
			g.summary.EndTime = &end
		}

		if ms := e.Meta(models.MetaExecutionTimeMS); ms != "" {
			if v, err := strconv.ParseInt(ms, 10, 64); err == nil {
				g.execTotal += v
				g.execCount++
			}
		}
		if g.summary.Platform == "" {
			g.summary.Platform = e.Meta(models.MetaPlatform)
		}
		if g.summary.GitBranch == "" {
			g.summary.GitBranch = e.Meta(models.MetaGitBranch)
		}
	}

	summaries := make([]models.SessionSummary, 0, len(groups))
	for _, g := range groups {
		if g.execCount > 0 {
			g.summary.AverageExecutionTimeMS = float64(g.execTotal) / float64(g.execCount)
		}
		if g.summary.EndTime != nil {
			g.summary.IsActive = IsActive(*g.summary.EndTime, now)
		}
		summaries = append(summaries, g.summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		ti, tj := summaries[i].EndTime, summaries[j].EndTime
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.After(*tj)
		default:
			return summaries[i].SessionID < summaries[j].SessionID
		}
	})
	return summaries
}
