package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hooktail-systems/hooktail/internal/models"
)

// MemoryStore is an in-memory Store used in tests and throwaway runs.
// It is not durable.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]models.EventRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]models.EventRecord)}
}

func (s *MemoryStore) Insert(ctx context.Context, rec models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

func (s *MemoryStore) InsertBatch(ctx context.Context, recs []models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.recs[rec.ID] = rec
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return models.EventRecord{}, ErrEventNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, id)
	return nil
}

func (s *MemoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, rec := range s.recs {
		if rec.Timestamp.Before(cutoff) {
			delete(s.recs, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteOldest(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.sortedAscLocked()
	if n > len(recs) {
		n = len(recs)
	}
	for _, rec := range recs[:n] {
		delete(s.recs, rec.ID)
	}
	return int64(n), nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = make(map[string]models.EventRecord)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]models.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := toSet(q.SessionIDs)
	types := toSet(q.HookTypes)

	var recs []models.EventRecord
	for _, rec := range s.recs {
		if len(sessions) > 0 {
			if _, ok := sessions[rec.SessionID]; !ok {
				continue
			}
		}
		if len(types) > 0 {
			if _, ok := types[rec.HookType]; !ok {
				continue
			}
		}
		if !q.Since.IsZero() && rec.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !rec.Timestamp.Before(q.Until) {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].Sequence > recs[j].Sequence
	})

	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	return recs, nil
}

func (s *MemoryStore) CountAll(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs), nil
}

func (s *MemoryStore) AverageExecutionTime(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recs) == 0 {
		return 0, nil
	}
	var total int64
	for _, rec := range s.recs {
		total += rec.CoreExecutionTimeMS
	}
	return float64(total) / float64(len(s.recs)), nil
}

func (s *MemoryStore) EventsPerHour(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-time.Hour)
	count := 0
	for _, rec := range s.recs {
		if !rec.Timestamp.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SuccessRate(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recs) == 0 {
		return 0, nil
	}
	success := 0
	for _, rec := range s.recs {
		if rec.CoreStatus == models.StatusSuccess {
			success++
		}
	}
	return float64(success) / float64(len(s.recs)) * 100, nil
}

func (s *MemoryStore) MostActiveSession(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range s.recs {
		counts[rec.SessionID]++
	}

	best := ""
	for session, count := range counts {
		if best == "" || count > counts[best] || (count == counts[best] && session < best) {
			best = session
		}
	}
	return best, nil
}

func (s *MemoryStore) TopToolNames(ctx context.Context, n int) ([]ToolCount, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range s.recs {
		if rec.PayloadToolName != "" {
			counts[rec.PayloadToolName]++
		}
	}

	tools := make([]ToolCount, 0, len(counts))
	for name, count := range counts {
		tools = append(tools, ToolCount{Name: name, Count: count})
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].Count != tools[j].Count {
			return tools[i].Count > tools[j].Count
		}
		return tools[i].Name < tools[j].Name
	})

	if len(tools) > n {
		tools = tools[:n]
	}
	return tools, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortedAscLocked returns records sorted oldest-first. Caller holds s.mu.
func (s *MemoryStore) sortedAscLocked() []models.EventRecord {
	recs := make([]models.EventRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		}
		return recs[i].Sequence < recs[j].Sequence
	})
	return recs
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
