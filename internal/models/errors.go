package models

import "errors"

// Error taxonomy shared by storage, auth, ledger and handlers.
// Wrap with fmt.Errorf("%w: detail", ErrX) and match with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrAuthentication  = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
)
