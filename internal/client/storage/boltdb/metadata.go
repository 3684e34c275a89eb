package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/statesync/internal/client/storage"
)

var (
	keyLastSyncedAt = []byte("last_synced_at")
	keyDeviceID     = []byte("device_id")
	keySalt         = []byte("storage_salt")
	keyFingerprint  = []byte("storage_key_fingerprint")
)

// SaveLastSyncedAt saves the time of the last successful sync
func (s *Storage) SaveLastSyncedAt(ctx context.Context, at time.Time) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	// Храним UnixNano в BigEndian
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(at.UnixNano()))

	if err := s.putMeta(keyLastSyncedAt, buf); err != nil {
		return fmt.Errorf("failed to save last synced at: %w", err)
	}
	return nil
}

// GetLastSyncedAt retrieves the time of the last successful sync
// Returns zero time if no sync has been performed yet
func (s *Storage) GetLastSyncedAt(ctx context.Context) (time.Time, error) {
	if s.db == nil {
		return time.Time{}, storage.ErrStorageClosed
	}

	buf, err := s.getMeta(keyLastSyncedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last synced at: %w", err)
	}
	if len(buf) != 8 {
		return time.Time{}, nil
	}

	return time.Unix(0, int64(binary.BigEndian.Uint64(buf))).UTC(), nil
}

// SaveDeviceID persists the device identifier
func (s *Storage) SaveDeviceID(ctx context.Context, deviceID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.putMeta(keyDeviceID, []byte(deviceID))
}

// GetDeviceID returns the persisted device identifier or "" if none
func (s *Storage) GetDeviceID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}
	buf, err := s.getMeta(keyDeviceID)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (s *Storage) putMeta(key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		return bucket.Put(key, value)
	})
}

// getMeta возвращает копию значения или nil, если ключа нет
func (s *Storage) getMeta(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}
		if v := bucket.Get(key); v != nil {
			out = bytes.Clone(v)
		}
		return nil
	})
	return out, err
}
