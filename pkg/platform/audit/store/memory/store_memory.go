package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "fleetdocs/pkg/platform/audit"
)

// InMemoryStore keeps events and a matching outbox in memory. It backs unit
// tests and the no-database development mode.
type InMemoryStore struct {
	mu        sync.RWMutex
	events    []audit.Event
	outbox    []audit.OutboxEntry
	published map[uuid.UUID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[uuid.UUID]time.Time)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.outbox = nil
	s.published = make(map[uuid.UUID]time.Time)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	entry, err := audit.Encode(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.outbox = append(s.outbox, entry)
	return nil
}

// ListByAggregate returns events for one aggregate in emission order.
func (s *InMemoryStore) ListByAggregate(_ context.Context, aggregateID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events), nil
}

func (s *InMemoryStore) Pending(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, entry := range s.outbox {
		if _, done := s.published[entry.ID]; done {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = at
	}
	return nil
}
