package storage

import (
	"context"

	"github.com/iudanet/statesync/internal/models"
)

// SnapshotStorage хранит последний известный снапшот устройства.
type SnapshotStorage interface {
	// SaveSnapshot stores the working snapshot (last-known-good local state).
	// Must be called before any network attempt.
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error

	// LoadSnapshot returns the working snapshot
	// Returns ErrSnapshotNotFound if nothing was saved yet
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)

	// SaveBase stores the last snapshot acknowledged by the remote store.
	// It is the common ancestor for the next merge.
	SaveBase(ctx context.Context, snap *models.Snapshot) error

	// LoadBase returns the last acknowledged snapshot
	// Returns ErrSnapshotNotFound if the device never synced
	LoadBase(ctx context.Context) (*models.Snapshot, error)
}
