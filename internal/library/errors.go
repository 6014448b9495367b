package library

import "errors"

// Error taxonomy for library operations. Handlers map these with
// errors.Is; anything else is treated as a storage failure.
var (
	// ErrUnauthorized is returned when a mutating operation is attempted
	// without write access. Checked before any store or blob side effect.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when the referenced record id does not exist.
	ErrNotFound = errors.New("library item not found")

	// ErrInvalidInput is returned for missing required fields, disallowed
	// image types and oversized uploads. Wrapped errors carry the detail.
	ErrInvalidInput = errors.New("invalid input")
)
