// Package filter applies multi-criteria filters and relevance-ranked
// search over candidate event lists. Inputs are never mutated; every
// function returns a fresh slice.
package filter

import (
	"sort"
	"strings"

	"github.com/hooktail-systems/hooktail/internal/models"
)

// maxAvailableSessions caps the session picker list.
const maxAvailableSessions = 10

// Relevance weights per matched field.
const (
	weightTitle   = 2.0
	weightMessage = 1.5
	weightSource  = 1.0
)

// Match-strength scores: exact beats prefix beats substring.
const (
	scoreExact     = 3.0
	scorePrefix    = 2.0
	scoreSubstring = 1.0
)

// Apply runs the fixed filter pipeline: type, severity, session, then
// search. A stage with an empty criterion set is a no-op. A non-empty
// search query additionally re-sorts survivors by descending relevance.
func Apply(events []models.CanonicalEvent, criteria models.FilterCriteria) []models.CanonicalEvent {
	out := make([]models.CanonicalEvent, 0, len(events))
	out = append(out, events...)

	if len(criteria.Types) > 0 {
		types := make(map[models.HookType]struct{}, len(criteria.Types))
		for _, t := range criteria.Types {
			types[t] = struct{}{}
		}
		out = keep(out, func(e models.CanonicalEvent) bool {
			_, ok := types[e.Type]
			return ok
		})
	}

	if len(criteria.Severities) > 0 {
		severities := make(map[models.Severity]struct{}, len(criteria.Severities))
		for _, s := range criteria.Severities {
			severities[s] = struct{}{}
		}
		out = keep(out, func(e models.CanonicalEvent) bool {
			_, ok := severities[e.Severity]
			return ok
		})
	}

	if len(criteria.SessionIDs) > 0 {
		sessions := make(map[string]struct{}, len(criteria.SessionIDs))
		for _, id := range criteria.SessionIDs {
			sessions[id] = struct{}{}
		}
		out = keep(out, func(e models.CanonicalEvent) bool {
			_, ok := sessions[e.SessionID()]
			return ok
		})
	}

	if criteria.SearchQuery != "" {
		query := strings.ToLower(criteria.SearchQuery)
		out = keep(out, func(e models.CanonicalEvent) bool {
			return Relevance(e, query) > 0
		})
		// Stable so equally relevant events keep their input order.
		sort.SliceStable(out, func(i, j int) bool {
			return Relevance(out[i], query) > Relevance(out[j], query)
		})
	}

	return out
}

// Relevance scores how strongly an event matches the lowercase query:
// title counts double, message one and a half, source once, and the best
// metadata value once. Zero means no match.
func Relevance(e models.CanonicalEvent, query string) float64 {
	score := weightTitle*fieldScore(e.Title, query) +
		weightMessage*fieldScore(e.Message, query) +
		weightSource*fieldScore(e.Source, query)

	best := 0.0
	for _, v := range e.Metadata {
		if s := fieldScore(v, query); s > best {
			best = s
		}
	}
	return score + best
}

// fieldScore grades the query match within one field: exact match beats
// prefix match beats substring match; anything else is zero.
func fieldScore(field, query string) float64 {
	if field == "" || query == "" {
		return 0
	}
	field = strings.ToLower(field)
	switch {
	case field == query:
		return scoreExact
	case strings.HasPrefix(field, query):
		return scorePrefix
	case strings.Contains(field, query):
		return scoreSubstring
	default:
		return 0
	}
}

// AvailableSessions returns the distinct session ids of events, ordered
// by descending most-recent activity, capped at ten entries.
func AvailableSessions(events []models.CanonicalEvent) []string {
	latest := make(map[string]int64)
	for _, e := range events {
		id := e.SessionID()
		if id == "" {
			continue
		}
		if cur, ok := latest[id]; !ok || e.Timestamp.UnixNano() > cur {
			latest[id] = e.Timestamp.UnixNano()
		}
	}

	sessions := make([]string, 0, len(latest))
	for id := range latest {
		sessions = append(sessions, id)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if latest[sessions[i]] != latest[sessions[j]] {
			return latest[sessions[i]] > latest[sessions[j]]
		}
		return sessions[i] < sessions[j]
	})

	if len(sessions) > maxAvailableSessions {
		sessions = sessions[:maxAvailableSessions]
	}
	return sessions
}

// Stats summarizes a filter run: total candidates, survivors, and the
// survivor severity breakdown.
func Stats(events []models.CanonicalEvent, criteria models.FilterCriteria) models.FilterStats {
	filtered := Apply(events, criteria)

	bySeverity := make(map[models.Severity]int)
	for _, e := range filtered {
		bySeverity[e.Severity]++
	}

	return models.FilterStats{
		TotalEvents:    len(events),
		FilteredEvents: len(filtered),
		BySeverity:     bySeverity,
	}
}

func keep(events []models.CanonicalEvent, pred func(models.CanonicalEvent) bool) []models.CanonicalEvent {
	out := events[:0]
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}
