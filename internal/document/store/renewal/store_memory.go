package renewal

import (
	"context"
	"slices"
	"strings"
	"sync"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/sentinel"
)

// InMemory keeps append-only renewal history per document.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.DocumentID][]models.RenewalRecord
	ids     map[id.RenewalID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.DocumentID][]models.RenewalRecord),
		ids:     make(map[id.RenewalID]struct{}),
	}
}

func (s *InMemory) Append(_ context.Context, record *models.RenewalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.ids[record.ID] = struct{}{}
	s.records[record.DocumentID] = append(s.records[record.DocumentID], *record)
	return nil
}

// ListByDocument returns the history ordered by CreatedAt, then ID.
func (s *InMemory) ListByDocument(_ context.Context, docID id.DocumentID) ([]models.RenewalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.records[docID])
	slices.SortStableFunc(out, func(a, b models.RenewalRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}
