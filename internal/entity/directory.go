// Package entity resolves weak vehicle, driver and company references to
// display names. Nothing here enforces referential integrity.
package entity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fleetdocs/internal/document/models"
	"fleetdocs/pkg/platform/sentinel"
)

type key struct {
	entityType models.EntityType
	entityID   string
}

// Static is an in-memory directory loaded at start-up.
type Static struct {
	mu    sync.RWMutex
	names map[key]string
}

func NewStatic() *Static {
	return &Static{names: make(map[key]string)}
}

// Register adds or renames an entity.
func (s *Static) Register(entityType models.EntityType, entityID, name string) error {
	if !entityType.IsValid() {
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[key{entityType, entityID}] = strings.TrimSpace(name)
	return nil
}

// Resolve returns sentinel.ErrNotFound for unknown entities.
func (s *Static) Resolve(_ context.Context, entityType models.EntityType, entityID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[key{entityType, strings.TrimSpace(entityID)}]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return name, nil
}

// ParseEntries reads "TYPE:id=Name" entries separated by semicolons, the
// format of the ENTITY_DIRECTORY setting.
func ParseEntries(raw string) (*Static, error) {
	dir := NewStatic()
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ref, name, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entity entry %q: missing '='", entry)
		}
		rawType, entityID, ok := strings.Cut(ref, ":")
		if !ok {
			return nil, fmt.Errorf("entity entry %q: missing ':'", entry)
		}
		entityType, err := models.ParseEntityType(rawType)
		if err != nil {
			return nil, fmt.Errorf("entity entry %q: %w", entry, err)
		}
		if err := dir.Register(entityType, entityID, name); err != nil {
			return nil, fmt.Errorf("entity entry %q: %w", entry, err)
		}
	}
	return dir, nil
}
