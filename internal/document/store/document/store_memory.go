package document

import (
	"context"
	"slices"
	"strings"
	"sync"

	"fleetdocs/internal/document/models"
	id "fleetdocs/pkg/domain"
	"fleetdocs/pkg/platform/dates"
	"fleetdocs/pkg/platform/sentinel"
	pstrings "fleetdocs/pkg/platform/strings"
)

// InMemory is a map-backed document store. Every write enforces the same
// version compare-and-set as the postgres store.
type InMemory struct {
	mu   sync.RWMutex
	docs map[id.DocumentID]*models.Document
}

func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[id.DocumentID]*models.Document)}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	doc.Version = 1
	s.docs[doc.ID] = doc.Clone()
	return nil
}

// FindByID returns a copy of the document. Soft-deleted documents are
// reported as not found.
func (s *InMemory) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok || doc.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

// Update writes doc if the stored version still equals doc.Version, then
// bumps doc.Version.
func (s *InMemory) Update(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[doc.ID]
	if !ok || current.IsDeleted() {
		return sentinel.ErrNotFound
	}
	if current.Version != doc.Version {
		return sentinel.ErrStale
	}
	doc.Version++
	s.docs[doc.ID] = doc.Clone()
	return nil
}

// ListAfter returns up to limit live documents with ID greater than after,
// ordered by ID. A nil after starts from the beginning.
func (s *InMemory) ListAfter(_ context.Context, after id.DocumentID, limit int) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live := s.liveSortedByID()
	start, _ := slices.BinarySearchFunc(live, after, func(d *models.Document, target id.DocumentID) int {
		return strings.Compare(d.ID.String(), target.String())
	})
	if start < len(live) && live[start].ID == after {
		start++
	}
	end := min(start+limit, len(live))
	out := make([]*models.Document, 0, end-start)
	for _, d := range live[start:end] {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (s *InMemory) CountByCategory(_ context.Context, categoryID id.CategoryID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.docs {
		if d.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// Query filters, sorts and pages live documents.
func (s *InMemory) Query(_ context.Context, filter models.Filter, sort models.Sort, page models.Page) ([]*models.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Document
	for _, d := range s.docs {
		if !d.IsDeleted() && matches(d, filter) {
			matched = append(matched, d)
		}
	}
	slices.SortFunc(matched, comparator(sort))

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Size, total)
	items := make([]*models.Document, 0, end-start)
	for _, d := range matched[start:end] {
		items = append(items, d.Clone())
	}
	return items, total, nil
}

func (s *InMemory) liveSortedByID() []*models.Document {
	live := make([]*models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if !d.IsDeleted() {
			live = append(live, d)
		}
	}
	slices.SortFunc(live, func(a, b *models.Document) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return live
}

func matches(d *models.Document, f models.Filter) bool {
	if f.Search != "" {
		term := strings.TrimSpace(f.Search)
		if !pstrings.ContainsFold(d.Title, term) &&
			!pstrings.ContainsFold(d.DocumentNumber, term) &&
			!pstrings.ContainsFold(d.Description, term) {
			return false
		}
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.CategoryID != nil && d.CategoryID != *f.CategoryID {
		return false
	}
	if f.EntityType != "" && d.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && d.EntityID != f.EntityID {
		return false
	}
	if f.Priority != "" && d.Priority != f.Priority {
		return false
	}
	if f.ExpiryFrom != nil && dates.Before(d.ExpiryDate, *f.ExpiryFrom) {
		return false
	}
	if f.ExpiryTo != nil && dates.After(d.ExpiryDate, *f.ExpiryTo) {
		return false
	}
	return true
}

func comparator(sort models.Sort) func(a, b *models.Document) int {
	return func(a, b *models.Document) int {
		var c int
		switch sort.Field {
		case models.SortByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case models.SortByTitle:
			c = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case models.SortByPriority:
			c = a.Priority.Rank() - b.Priority.Rank()
		default:
			c = a.ExpiryDate.Compare(b.ExpiryDate)
		}
		if sort.Direction == models.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	}
}
