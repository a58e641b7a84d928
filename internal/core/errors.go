package core

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden operation")

	// ErrRateNotFound means no rate card entry or tier matches a member or
	// group. Batch quoting surfaces it as a success=false breakdown rather
	// than aborting unrelated members.
	ErrRateNotFound = errors.New("no matching rate")
)
