package storage

import "errors"

// Common storage errors
var (
	// ErrVersionConflict indicates that the pushed snapshot was based on a stale version
	ErrVersionConflict = errors.New("snapshot version conflict")

	// ErrInvalidVersion indicates a negative or otherwise unusable base version
	ErrInvalidVersion = errors.New("invalid snapshot version")
)
