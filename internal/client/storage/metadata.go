package storage

import (
	"context"
	"time"
)

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastSyncedAt saves the time of the last accepted push or pull
	SaveLastSyncedAt(ctx context.Context, at time.Time) error

	// GetLastSyncedAt returns the time of the last successful sync
	// Returns zero time if no sync has been performed yet
	GetLastSyncedAt(ctx context.Context) (time.Time, error)

	// SaveDeviceID persists the device identifier
	SaveDeviceID(ctx context.Context, deviceID string) error

	// GetDeviceID returns the persisted device identifier or "" if none
	GetDeviceID(ctx context.Context) (string, error)
}
