package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: row does not exist (or is soft-deleted)
//   - ErrConflict: uniqueness violated
//   - ErrStale: optimistic version check failed; another writer got there first
//   - ErrReferenced: row is still referenced and cannot be removed
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrStale       = errors.New("stale version")
	ErrReferenced  = errors.New("still referenced")
	ErrUnavailable = errors.New("unavailable")
)
