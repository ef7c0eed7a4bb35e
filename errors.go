package fleetacl

import "errors"

// Error taxonomy for strict accessors. Listing/convenience paths deliberately
// do not raise these; they log and return a safe default instead (see the
// Engine listing methods).
var (
	// ErrNotFound is returned when a key does not exist and creation was not
	// requested, or a required parent record is missing.
	ErrNotFound = errors.New("fleetacl: not found")

	// ErrAlreadyExists is returned when creation is requested for a key that
	// already exists. Concurrent get-or-create callers racing on the same key
	// should treat this as a benign outcome and retry as a plain get.
	ErrAlreadyExists = errors.New("fleetacl: already exists")

	// ErrInvalidArgument is returned when a blank or malformed identifier is
	// supplied to a strict accessor.
	ErrInvalidArgument = errors.New("fleetacl: invalid argument")
)
