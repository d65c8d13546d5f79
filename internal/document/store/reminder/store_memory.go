package reminder

import (
	"context"
	"sync"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
)

type InMemory struct {
	mu     sync.RWMutex
	states map[id.DocumentID]models.ReminderState
}

func NewInMemory() *InMemory {
	return &InMemory{states: make(map[id.DocumentID]models.ReminderState)}
}

// Get returns nil without error when no reminder was ever recorded.
func (s *InMemory) Get(_ context.Context, docID id.DocumentID) (*models.ReminderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[docID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// GetMany returns recorded states keyed by document; absent documents are
// simply missing from the map.
func (s *InMemory) GetMany(_ context.Context, docIDs []id.DocumentID) (map[id.DocumentID]*models.ReminderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.DocumentID]*models.ReminderState, len(docIDs))
	for _, docID := range docIDs {
		if st, ok := s.states[docID]; ok {
			copied := st
			out[docID] = &copied
		}
	}
	return out, nil
}

func (s *InMemory) Upsert(_ context.Context, state *models.ReminderState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DocumentID] = *state
	return nil
}
