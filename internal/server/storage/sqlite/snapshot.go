package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/internal/server/storage"
)

// GetSnapshot returns the current snapshot of the account
// Returns an empty snapshot of version 0 if the account never pushed
func (s *Storage) GetSnapshot(ctx context.Context, accountID string) (*models.Snapshot, error) {
	query := `SELECT version, body FROM snapshots WHERE account_id = ?`

	var version int64
	var body []byte
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&version, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EmptySnapshot(), nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return storage.DecodeSnapshot(body, version)
}

// PutSnapshot stores snap if snap.Version matches the stored version
// Returns storage.ErrVersionConflict otherwise
func (s *Storage) PutSnapshot(ctx context.Context, accountID string, snap *models.Snapshot) (int64, error) {
	body, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return 0, err
	}

	next := snap.Version + 1
	now := time.Now().UTC().UnixMilli()
	lastModified := snap.LastModified.UTC().UnixMilli()

	var res sql.Result
	if snap.Version == 0 {
		// Первый push аккаунта: вставка проходит, только если строки ещё нет
		query := `
			INSERT INTO snapshots (account_id, version, device_id, last_modified, body, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id) DO NOTHING
		`
		res, err = s.db.ExecContext(ctx, query, accountID, next, snap.DeviceID, lastModified, body, now)
	} else {
		query := `
			UPDATE snapshots
			SET version = ?, device_id = ?, last_modified = ?, body = ?, updated_at = ?
			WHERE account_id = ? AND version = ?
		`
		res, err = s.db.ExecContext(ctx, query, next, snap.DeviceID, lastModified, body, now, accountID, snap.Version)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to store snapshot: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		s.logger.Debug("Snapshot push rejected", "account_id", accountID, "base_version", snap.Version)
		return 0, storage.ErrVersionConflict
	}

	return next, nil
}
