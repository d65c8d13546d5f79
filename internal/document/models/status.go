package models

import (
	"strings"

	dErrors "fleetdocs/pkg/domain-errors"
)

// Status is the lifecycle status of a document. Every value except
// StatusRenewalInProgress is a cache of the classifier and can be recomputed
// from the document's dates at any time.
type Status string

const (
	StatusValid             Status = "VALID"
	StatusExpiringSoon      Status = "EXPIRING_SOON"
	StatusExpired           Status = "EXPIRED"
	StatusRenewalInProgress Status = "RENEWAL_IN_PROGRESS"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusValid, StatusExpiringSoon, StatusExpired, StatusRenewalInProgress:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts any casing and dashes in place of underscores.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+raw)
	}
	return s, nil
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Rank orders priorities LOW < MEDIUM < HIGH < CRITICAL. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

func (p Priority) IsValid() bool { return p.Rank() > 0 }

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown priority: "+raw)
	}
	return p, nil
}

// EntityType names the external object a document is attached to.
type EntityType string

const (
	EntityVehicle EntityType = "VEHICLE"
	EntityDriver  EntityType = "DRIVER"
	EntityCompany EntityType = "COMPANY"
	EntityOther   EntityType = "OTHER"
)

func (e EntityType) IsValid() bool {
	switch e {
	case EntityVehicle, EntityDriver, EntityCompany, EntityOther:
		return true
	}
	return false
}

func ParseEntityType(raw string) (EntityType, error) {
	e := EntityType(strings.ToUpper(strings.TrimSpace(raw)))
	if !e.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown entity type: "+raw)
	}
	return e, nil
}
