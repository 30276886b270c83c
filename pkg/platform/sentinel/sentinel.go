package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and source adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: another operation holds the registry lock
// - ErrUnavailable: an optional collaborator (commerce subsystem, mailer) is
//   not installed or not reachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
