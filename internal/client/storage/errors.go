package storage

import "errors"

// Common client storage errors
var (
	// ErrSnapshotNotFound indicates that no snapshot has been saved yet
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrQueueEmpty indicates that there are no pending operations
	ErrQueueEmpty = errors.New("operation queue is empty")

	// ErrOperationNotFound indicates that operation is neither pending nor dead-lettered
	ErrOperationNotFound = errors.New("operation not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrWrongPassphrase indicates that the store was sealed with a different key
	ErrWrongPassphrase = errors.New("wrong storage passphrase")

	// ErrLocked indicates that another process holds the database file
	ErrLocked = errors.New("storage is locked by another process")
)
