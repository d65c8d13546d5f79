package category

import (
	"context"
	"errors"

	"fleetdocs/internal/document/models"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/sentinel"
)

// DefaultCategories are the standard NEMT compliance categories.
var DefaultCategories = []models.CategoryParams{
	{Name: "Vehicle Insurance", Color: "#2563EB", Icon: "shield", RequiresRenewal: true, RenewalPeriodDays: 365},
	{Name: "Vehicle Registration", Color: "#059669", Icon: "car", RequiresRenewal: true, RenewalPeriodDays: 365},
	{Name: "Driver License", Color: "#D97706", Icon: "id-card", RequiresRenewal: true, RenewalPeriodDays: 1460},
	{Name: "Medical Certificate", Color: "#DC2626", Icon: "heart-pulse", RequiresRenewal: true, RenewalPeriodDays: 730},
	{Name: "Company Liability Insurance", Color: "#7C3AED", Icon: "building", RequiresRenewal: true, RenewalPeriodDays: 365},
	{Name: "Vehicle Inspection", Color: "#0891B2", Icon: "clipboard-check", RequiresRenewal: true, RenewalPeriodDays: 365},
}

// SeedDefaults creates each default category whose name is not taken yet and
// returns how many were created. Safe to run on every start.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	created := 0
	for _, params := range DefaultCategories {
		_, err := s.store.FindByName(ctx, params.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return created, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to look up category "+params.Name)
		}
		if _, err := s.Create(ctx, params); err != nil {
			// lost a race with another replica seeding the same name
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "seeded default categories", "created", created)
	}
	return created, nil
}
