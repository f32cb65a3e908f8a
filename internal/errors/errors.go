package errors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	ErrInvalidID = errors.New("invalid ID format")

	ErrDuplicateName = errors.New("resource name already exists")

	// ErrLockHeld is returned when a per-resource lock could not be taken
	// before the caller's deadline.
	ErrLockHeld = errors.New("resource lock is held by another request")
)
