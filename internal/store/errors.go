package store

import "errors"

// Sentinel errors for store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the referenced conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrValidation indicates a write was rejected before touching storage:
	// an invalid role or an empty required field.
	ErrValidation = errors.New("validation failed")
)
