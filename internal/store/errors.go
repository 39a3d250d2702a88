package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a generation with an already-known task ID).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update operation fails, for example
	// because the entity does not exist or the update violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrGenerationNotFound indicates that no generation matches the
	// requested identifier.
	ErrGenerationNotFound = fmt.Errorf("%w: generation", ErrNotFound)

	// ErrTextureNotFound indicates that the requested texture does not exist.
	ErrTextureNotFound = fmt.Errorf("%w: texture", ErrNotFound)

	// ErrTaskIDExists indicates that a generation with the given provider
	// task identifier already exists. Task identifiers are globally unique
	// across providers sharing a store.
	ErrTaskIDExists = fmt.Errorf("%w: task ID", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
