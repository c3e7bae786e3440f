package store

import "errors"

// Sentinel errors for store operations.
// These errors are part of the Store's public API and should be checked using errors.Is().
var (
	// ErrNotFound indicates the requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrPersist indicates the in-memory mutation succeeded but the backing
	// file could not be rewritten. The caller may retry the flush; reads stay
	// consistent with the mutation.
	ErrPersist = errors.New("persisting conversations")
)
