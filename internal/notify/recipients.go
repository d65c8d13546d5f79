package notify

import (
	"context"
	"fmt"

	"fleetdocs/internal/document/models"
	"fleetdocs/pkg/email"
)

// StaticRecipients routes reminders by entity type, falling back to a
// default list. Addresses are normalised and deduplicated at construction.
type StaticRecipients struct {
	defaults []string
	byEntity map[models.EntityType][]string
}

func NewStaticRecipients(defaults []string, byEntity map[models.EntityType][]string) (*StaticRecipients, error) {
	normDefaults, err := normalizeAll(defaults)
	if err != nil {
		return nil, err
	}
	routes := make(map[models.EntityType][]string, len(byEntity))
	for entityType, addrs := range byEntity {
		if !entityType.IsValid() {
			return nil, fmt.Errorf("unknown entity type %q", entityType)
		}
		norm, err := normalizeAll(addrs)
		if err != nil {
			return nil, err
		}
		routes[entityType] = norm
	}
	return &StaticRecipients{defaults: normDefaults, byEntity: routes}, nil
}

func (s *StaticRecipients) Recipients(_ context.Context, doc *models.Document) ([]string, error) {
	if addrs, ok := s.byEntity[doc.EntityType]; ok && len(addrs) > 0 {
		return append([]string(nil), addrs...), nil
	}
	return append([]string(nil), s.defaults...), nil
}

func normalizeAll(addrs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		norm, err := email.Normalize(addr)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out, nil
}
