package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/models"
)

var (
	keyWorking = []byte("working")
	keyBase    = []byte("base")
)

// SaveSnapshot stores the working snapshot
func (s *Storage) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	return s.putSnapshot(keyWorking, snap)
}

// LoadSnapshot returns the working snapshot
func (s *Storage) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	return s.getSnapshot(keyWorking)
}

// SaveBase stores the last snapshot acknowledged by the remote store
func (s *Storage) SaveBase(ctx context.Context, snap *models.Snapshot) error {
	return s.putSnapshot(keyBase, snap)
}

// LoadBase returns the last acknowledged snapshot
func (s *Storage) LoadBase(ctx context.Context) (*models.Snapshot, error) {
	return s.getSnapshot(keyBase)
}

func (s *Storage) putSnapshot(key []byte, snap *models.Snapshot) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := s.encode(snap, key)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		return bucket.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to save %s snapshot: %w", key, err)
	}

	return nil
}

func (s *Storage) getSnapshot(key []byte) (*models.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var snap *models.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return storage.ErrSnapshotNotFound
		}

		data := bucket.Get(key)
		if data == nil {
			return storage.ErrSnapshotNotFound
		}

		snap = &models.Snapshot{}
		return s.decode(data, key, snap)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s snapshot: %w", key, err)
	}

	if snap.Payload == nil {
		snap.Payload = make(map[string]any)
	}
	return snap, nil
}
