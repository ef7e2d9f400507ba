package types

import "errors"

var (
	// ErrInvalidInput is returned for unreadable or unsupported input files.
	// It is the only error that aborts a document run.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable is returned when an external call failed or
	// timed out. Recoverable: triggers fallback or field-level degradation.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDimensionMismatch is returned when a record's vector length
	// disagrees with the collection's established length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotFound is returned for unknown collections and tasks.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a collection name is reused with an
	// incompatible vector length.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTaskCancelled marks a task cancelled between pipeline stages.
	ErrTaskCancelled = errors.New("task cancelled")
)
