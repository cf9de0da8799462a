package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process ActivityStore used by tests and the daemon's
// --dry-run mode.
type MemoryStore struct {
	mu     sync.Mutex
	events []*ActivityEvent
}

var _ ActivityStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveEvent implements ActivityStore.
func (s *MemoryStore) SaveEvent(ctx context.Context, ev *ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.events = append(s.events, &cp)
	return nil
}

// ListDay implements ActivityStore.
func (s *MemoryStore) ListDay(ctx context.Context, day string) ([]*ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ActivityEvent
	for _, ev := range s.events {
		if ev.Timestamp.Format(dayFormat) == day {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Events returns a copy of every stored event in insertion order.
func (s *MemoryStore) Events() []*ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ActivityEvent, 0, len(s.events))
	for _, ev := range s.events {
		cp := *ev
		out = append(out, &cp)
	}
	return out
}
