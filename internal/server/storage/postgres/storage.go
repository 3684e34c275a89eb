package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/iudanet/statesync/internal/models"
	"github.com/iudanet/statesync/internal/server/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var _ storage.SnapshotStorage = (*Storage)(nil)

// Storage - хранилище снапшотов в PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New подключается к PostgreSQL по dsn и применяет миграции
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{pool: pool, logger: logger}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("PostgreSQL storage ready")

	return s, nil
}

// runMigrations применяет миграции через database/sql обёртку над пулом
func (s *Storage) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// Close closes the pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetSnapshot returns the current snapshot of the account
func (s *Storage) GetSnapshot(ctx context.Context, accountID string) (*models.Snapshot, error) {
	var version int64
	var body []byte

	err := s.pool.QueryRow(ctx,
		`SELECT version, body FROM snapshots WHERE account_id = $1`,
		accountID,
	).Scan(&version, &body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.EmptySnapshot(), nil
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return storage.DecodeSnapshot(body, version)
}

// PutSnapshot stores snap if snap.Version matches the stored version
func (s *Storage) PutSnapshot(ctx context.Context, accountID string, snap *models.Snapshot) (int64, error) {
	body, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return 0, err
	}

	next := snap.Version + 1
	lastModified := snap.LastModified.UTC()
	if lastModified.IsZero() {
		lastModified = time.Now().UTC()
	}

	var rows int64
	if snap.Version == 0 {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO snapshots (account_id, version, device_id, last_modified, body)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (account_id) DO NOTHING`,
			accountID, next, snap.DeviceID, lastModified, body)
		if err != nil {
			return 0, fmt.Errorf("failed to insert snapshot: %w", err)
		}
		rows = tag.RowsAffected()
	} else {
		tag, err := s.pool.Exec(ctx, `
			UPDATE snapshots
			SET version = $1, device_id = $2, last_modified = $3, body = $4, updated_at = now()
			WHERE account_id = $5 AND version = $6`,
			next, snap.DeviceID, lastModified, body, accountID, snap.Version)
		if err != nil {
			return 0, fmt.Errorf("failed to update snapshot: %w", err)
		}
		rows = tag.RowsAffected()
	}

	if rows == 0 {
		s.logger.Debug("Snapshot push rejected", "account_id", accountID, "base_version", snap.Version)
		return 0, storage.ErrVersionConflict
	}

	return next, nil
}
