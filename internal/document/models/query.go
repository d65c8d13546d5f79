package models

import (
	"strings"
	"time"

	id "fleetdocs/pkg/domain"
	dErrors "fleetdocs/pkg/domain-errors"
	"fleetdocs/pkg/platform/dates"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter fields are optional and AND-combined. Zero values match everything.
type Filter struct {
	// Search is a case-insensitive substring over title, document number and
	// description.
	Search     string
	Status     Status
	CategoryID *id.CategoryID
	EntityType EntityType
	EntityID   string
	Priority   Priority
	// ExpiryFrom and ExpiryTo bound ExpiryDate inclusively.
	ExpiryFrom *time.Time
	ExpiryTo   *time.Time
}

type SortField string

const (
	SortByExpiryDate SortField = "expiry_date"
	SortByCreatedAt  SortField = "created_at"
	SortByTitle      SortField = "title"
	SortByPriority   SortField = "priority"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort orders results; ties always break on ID ascending.
type Sort struct {
	Field     SortField
	Direction Direction
}

// Page is 1-based.
type Page struct {
	Number int
	Size   int
}

// Offset is the zero-based index of the first item on the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

type PageResult struct {
	Items []*Document `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// Pages is the number of pages needed for Total at Size.
func (r PageResult) Pages() int {
	if r.Size <= 0 {
		return 0
	}
	return (r.Total + r.Size - 1) / r.Size
}

// NormalizePage applies the default size, clamps to MaxPageSize and treats
// page numbers below 1 as the first page.
func NormalizePage(p Page) Page {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Number < 1 {
		p.Number = 1
	}
	return p
}

// NormalizeSort defaults to expiry date ascending and rejects unknown fields.
func NormalizeSort(s Sort) (Sort, error) {
	if s.Field == "" {
		s.Field = SortByExpiryDate
	}
	switch s.Field {
	case SortByExpiryDate, SortByCreatedAt, SortByTitle, SortByPriority:
	default:
		return Sort{}, dErrors.New(dErrors.CodeInvalidInput, "invalid sort field: "+string(s.Field))
	}
	s.Direction = Direction(strings.ToLower(string(s.Direction)))
	switch s.Direction {
	case "":
		s.Direction = Ascending
	case Ascending, Descending:
	default:
		return Sort{}, dErrors.New(dErrors.CodeInvalidInput, "invalid sort direction: "+string(s.Direction))
	}
	return s, nil
}

// Normalized returns a copy of f with the expiry bounds truncated to their
// calendar days, so every store compares whole days.
func (f Filter) Normalized() Filter {
	if f.ExpiryFrom != nil {
		from := dates.Day(*f.ExpiryFrom)
		f.ExpiryFrom = &from
	}
	if f.ExpiryTo != nil {
		to := dates.Day(*f.ExpiryTo)
		f.ExpiryTo = &to
	}
	return f
}

// Validate checks the filter for contradictory or malformed values.
func (f Filter) Validate() error {
	fields := dErrors.FieldErrors{}
	if f.Status != "" && !f.Status.IsValid() {
		fields.Add("status", "is not a known status")
	}
	if f.EntityType != "" && !f.EntityType.IsValid() {
		fields.Add("entity_type", "is not a known entity type")
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		fields.Add("priority", "is not a known priority")
	}
	if f.ExpiryFrom != nil && f.ExpiryTo != nil && dates.After(*f.ExpiryFrom, *f.ExpiryTo) {
		fields.Add("expiry_range", "from must not be after to")
	}
	return fields.Err("invalid filter")
}

// BulkItemResult reports the outcome for one id of a bulk operation.
type BulkItemResult struct {
	ID  id.DocumentID `json:"id"`
	OK  bool          `json:"ok"`
	Err error         `json:"-"`
}

type BulkResult struct {
	Items     []BulkItemResult `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

func (r *BulkResult) Add(docID id.DocumentID, err error) {
	r.Items = append(r.Items, BulkItemResult{ID: docID, OK: err == nil, Err: err})
	if err == nil {
		r.Succeeded++
	} else {
		r.Failed++
	}
}
