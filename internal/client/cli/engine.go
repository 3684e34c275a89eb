package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iudanet/statesync/internal/client/api"
	"github.com/iudanet/statesync/internal/client/capture"
	"github.com/iudanet/statesync/internal/client/storage"
	"github.com/iudanet/statesync/internal/client/storage/boltdb"
	clientsync "github.com/iudanet/statesync/internal/client/sync"
	"github.com/iudanet/statesync/internal/merge"
)

// engine - собранный координатор синхронизации со всеми зависимостями
type engine struct {
	store     *boltdb.Storage
	coord     *clientsync.Coordinator
	fragments map[string]*FileFragment
	logger    *slog.Logger
	deviceID  string

	cancel context.CancelFunc
	runErr chan error
}

// openEngine открывает локальное хранилище и собирает координатор.
// subscribe=false для разовых команд: уведомления им не нужны.
func (c *Cli) openEngine(ctx context.Context, subscribe bool) (*engine, error) {
	opts := []boltdb.Option{
		boltdb.WithRetryCeiling(c.cfg.RetryCeiling),
		boltdb.WithLogger(c.logger),
	}
	if c.cfg.Encrypt {
		passphrase, err := c.getPassphrase()
		if err != nil {
			return nil, err
		}
		opts = append(opts, boltdb.WithPassphrase(passphrase))
	}

	store, err := boltdb.New(ctx, c.cfg.DBPath, opts...)
	if err != nil {
		if errors.Is(err, storage.ErrLocked) {
			return nil, fmt.Errorf("%w (is 'statesync run' active?)", err)
		}
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}

	deviceID, err := ensureDeviceID(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	fragments, err := openFragments(c.cfg.StateDir, c.cfg.Fragments, c.logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	source := capture.New(deviceID, c.logger)
	for name, f := range fragments {
		source.Register(name, f)
	}

	gateway := api.NewClient(c.cfg.ServerURL,
		api.WithToken(c.cfg.Token),
		api.WithLogger(c.logger),
		api.WithReconnectBackoff(c.cfg.Sync.Backoff.Base, c.cfg.Sync.Backoff.Max),
	)

	syncCfg := c.cfg.Sync
	syncCfg.DisableSubscription = syncCfg.DisableSubscription || !subscribe

	return &engine{
		store:     store,
		coord:     clientsync.NewCoordinator(store, gateway, source, merge.NewResolver(), syncCfg, c.logger),
		fragments: fragments,
		logger:    c.logger,
		deviceID:  deviceID,
	}, nil
}

// ensureDeviceID возвращает сохранённый идентификатор устройства или создаёт новый
func ensureDeviceID(ctx context.Context, store storage.MetadataStorage) (string, error) {
	id, err := store.GetDeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get device id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := store.SaveDeviceID(ctx, id); err != nil {
		return "", fmt.Errorf("failed to save device id: %w", err)
	}
	return id, nil
}

// start запускает координатор в фоне и ждёт загрузки локального состояния
func (e *engine) start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.runErr = make(chan error, 1)

	go func() {
		e.runErr <- e.coord.Run(runCtx)
	}()

	select {
	case <-e.coord.Ready():
		return nil
	case <-e.coord.Done():
		return e.stop()
	case <-ctx.Done():
		_ = e.stop()
		return ctx.Err()
	}
}

// stop останавливает координатор и возвращает ошибку Run
func (e *engine) stop() error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	err := <-e.runErr
	e.cancel = nil
	return err
}

// Close stops the coordinator and closes local storage.
func (e *engine) Close() error {
	runErr := e.stop()
	if err := e.store.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to close local storage: %w", err))
	}
	return runErr
}

// withEngine открывает движок, запускает координатор, выполняет fn и закрывает всё
func (c *Cli) withEngine(ctx context.Context, fn func(ctx context.Context, e *engine) error) error {
	e, err := c.openEngine(ctx, false)
	if err != nil {
		return err
	}

	if err := e.start(ctx); err != nil {
		return errors.Join(err, e.Close())
	}

	fnErr := fn(ctx, e)
	return errors.Join(fnErr, e.Close())
}
