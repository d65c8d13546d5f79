package category

import (
	"context"
	"slices"
	"strings"
	"sync"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/sentinel"
)

type InMemory struct {
	mu         sync.RWMutex
	categories map[id.CategoryID]*models.Category
}

func NewInMemory() *InMemory {
	return &InMemory{categories: make(map[id.CategoryID]*models.Category)}
}

// Create inserts c unless another category already uses the same name
// ignoring case.
func (s *InMemory) Create(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.categories[c.ID]; exists {
		return sentinel.ErrConflict
	}
	if s.nameTaken(c.NameKey(), c.ID) {
		return sentinel.ErrConflict
	}
	stored := *c
	s.categories[c.ID] = &stored
	return nil
}

func (s *InMemory) FindByID(_ context.Context, categoryID id.CategoryID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[categoryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *c
	return &found, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.CategoryNameKey(name)
	for _, c := range s.categories {
		if c.NameKey() == key {
			found := *c
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// List returns every category ordered by name.
func (s *InMemory) List(_ context.Context) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		copied := *c
		out = append(out, &copied)
	}
	slices.SortFunc(out, func(a, b *models.Category) int {
		if c := strings.Compare(a.NameKey(), b.NameKey()); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemory) Update(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.nameTaken(c.NameKey(), c.ID) {
		return sentinel.ErrConflict
	}
	stored := *c
	s.categories[c.ID] = &stored
	return nil
}

func (s *InMemory) Delete(_ context.Context, categoryID id.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[categoryID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.categories, categoryID)
	return nil
}

func (s *InMemory) nameTaken(key string, except id.CategoryID) bool {
	for _, existing := range s.categories {
		if existing.ID != except && existing.NameKey() == key {
			return true
		}
	}
	return false
}
