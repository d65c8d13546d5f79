package models

import (
	"regexp"
	"strings"
	"time"

	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	pstrings "fleetdocs/pkg/platform/strings"
)

const maxCategoryNameLength = 100

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Category defines the renewal policy for a family of documents.
//
// Invariants:
//   - Name is non-empty, at most 100 characters, unique ignoring case
//   - RenewalPeriodDays ≥ 1; it is advisory when RequiresRenewal is false
//   - Color, when set, is a #RRGGBB hex triplet
type Category struct {
	ID                id.CategoryID `json:"id"`
	Name              string        `json:"name"`
	Color             string        `json:"color"`
	Icon              string        `json:"icon"`
	RequiresRenewal   bool          `json:"requires_renewal"`
	RenewalPeriodDays int           `json:"renewal_period_days"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Policy is the renewal policy slice of a category.
type Policy struct {
	RequiresRenewal   bool
	RenewalPeriodDays int
}

func (c *Category) Policy() Policy {
	return Policy{RequiresRenewal: c.RequiresRenewal, RenewalPeriodDays: c.RenewalPeriodDays}
}

// NameKey is the case-insensitive identity used for uniqueness checks.
func (c *Category) NameKey() string {
	return CategoryNameKey(c.Name)
}

func CategoryNameKey(name string) string {
	return strings.ToLower(pstrings.NormalizeName(name))
}

type CategoryParams struct {
	Name              string
	Color             string
	Icon              string
	RequiresRenewal   bool
	RenewalPeriodDays int
}

func NewCategory(categoryID id.CategoryID, p CategoryParams, now time.Time) (*Category, error) {
	c := &Category{
		ID:                categoryID,
		Name:              pstrings.NormalizeName(p.Name),
		Color:             strings.TrimSpace(p.Color),
		Icon:              strings.TrimSpace(p.Icon),
		RequiresRenewal:   p.RequiresRenewal,
		RenewalPeriodDays: p.RenewalPeriodDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// CategoryPatch carries optional edits; nil fields are left untouched.
type CategoryPatch struct {
	Name              *string
	Color             *string
	Icon              *string
	RequiresRenewal   *bool
	RenewalPeriodDays *int
}

// Apply validates the patched category as a whole before mutating c.
func (c *Category) Apply(p CategoryPatch, now time.Time) error {
	next := *c
	if p.Name != nil {
		next.Name = pstrings.NormalizeName(*p.Name)
	}
	if p.Color != nil {
		next.Color = strings.TrimSpace(*p.Color)
	}
	if p.Icon != nil {
		next.Icon = strings.TrimSpace(*p.Icon)
	}
	if p.RequiresRenewal != nil {
		next.RequiresRenewal = *p.RequiresRenewal
	}
	if p.RenewalPeriodDays != nil {
		next.RenewalPeriodDays = *p.RenewalPeriodDays
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*c = next
	return nil
}

func (c *Category) validate() error {
	fields := dErrors.FieldErrors{}
	switch {
	case c.Name == "":
		fields.Add("name", "is required")
	case len(c.Name) > maxCategoryNameLength:
		fields.Add("name", "must be 100 characters or less")
	}
	if c.RenewalPeriodDays < 1 {
		fields.Add("renewal_period_days", "must be at least 1")
	}
	if c.Color != "" && !colorPattern.MatchString(c.Color) {
		fields.Add("color", "must be a #RRGGBB hex color")
	}
	return fields.Err("invalid category")
}
