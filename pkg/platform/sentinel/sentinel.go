package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about resources, not rule failures:
// - ErrNotFound: row does not exist in the store
// - ErrConflict: a write-once or unique constraint was hit
// - ErrInvalidState: entity in wrong state for the requested operation
// - ErrUnavailable: collaborator or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
