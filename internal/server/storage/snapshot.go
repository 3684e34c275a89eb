package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/statesync/internal/models"
)

// SnapshotStorage хранит один снапшот на аккаунт с оптимистичной блокировкой по версии.
type SnapshotStorage interface {
	// GetSnapshot returns the current snapshot of the account.
	// An account that never pushed gets an empty snapshot of version 0.
	GetSnapshot(ctx context.Context, accountID string) (*models.Snapshot, error)

	// PutSnapshot stores snap only if snap.Version equals the stored version
	// (compare-and-swap) and returns the new version, stored version + 1.
	// Returns ErrVersionConflict if another device pushed first.
	PutSnapshot(ctx context.Context, accountID string, snap *models.Snapshot) (int64, error)

	// Ping checks the database connection
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// EncodeSnapshot сериализует тело снапшота для хранения.
// Версия хранится отдельной колонкой и в тело не входит.
func EncodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	if snap.Version < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, snap.Version)
	}

	body := *snap
	body.Version = 0
	if body.Payload == nil {
		body.Payload = make(map[string]any)
	}

	data, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot восстанавливает снапшот из тела и колонки версии.
func DecodeSnapshot(data []byte, version int64) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Payload == nil {
		snap.Payload = make(map[string]any)
	}
	snap.Version = version
	return &snap, nil
}

// EmptySnapshot is returned for accounts without a stored snapshot.
func EmptySnapshot() *models.Snapshot {
	return &models.Snapshot{Payload: make(map[string]any)}
}
