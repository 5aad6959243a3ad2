package store

import (
	"context"
	"sort"
	"sync"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

// InMemoryStore is the development and test implementation. Commits are
// atomic under the mutex and idempotent by event_id.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]models.CanonicalEvent
	events []models.CanonicalEvent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID: make(map[string]models.CanonicalEvent),
	}
}

func (s *InMemoryStore) CommitBatch(ctx context.Context, batch *models.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range batch.Events {
		if _, exists := s.byID[ev.EventID]; exists {
			continue
		}
		s.byID[ev.EventID] = ev
		s.events = append(s.events, ev)
	}
	return nil
}

func (s *InMemoryStore) QueryEvents(ctx context.Context, f QueryFilter) ([]models.CanonicalEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]models.CanonicalEvent, 0, len(s.events))
	for _, ev := range s.events {
		if matchesFilter(ev, f) {
			matched = append(matched, ev)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SourceID != matched[j].SourceID {
			return matched[i].SourceID < matched[j].SourceID
		}
		return matched[i].Sequence < matched[j].Sequence
	})

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (s *InMemoryStore) GetEvent(ctx context.Context, eventID string) (*models.CanonicalEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, exists := s.byID[eventID]
	if !exists {
		return nil, ErrEventNotFound
	}
	return &ev, nil
}

func (s *InMemoryStore) LastSequence(ctx context.Context, sourceID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var last uint64
	for _, ev := range s.events {
		if ev.SourceID == sourceID && ev.Sequence > last {
			last = ev.Sequence
		}
	}
	return last, nil
}

func (s *InMemoryStore) Close() {}

// Count reports the number of committed events; used by tests.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func matchesFilter(ev models.CanonicalEvent, f QueryFilter) bool {
	if f.SourceID != "" && ev.SourceID != f.SourceID {
		return false
	}
	if !f.From.IsZero() && ev.EventTimestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.EventTimestamp.After(f.To) {
		return false
	}
	if f.SeqMin > 0 && ev.Sequence < f.SeqMin {
		return false
	}
	if f.SeqMax > 0 && ev.Sequence > f.SeqMax {
		return false
	}
	return true
}
