package cli

import (
	"context"
	"errors"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	clientsync "github.com/iudanet/statesync/internal/client/sync"
	"github.com/iudanet/statesync/internal/models"
)

func newRunCommand(c *Cli) *cobra.Command {
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the sync daemon.

Edits to the fragment files in the state directory are queued and pushed
after the debounce delay; remote changes are pulled into the files.
Changes made while the daemon is stopped must go through 'statesync set'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.runDaemon(ctx, pollInterval)
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "how often fragment files are checked for edits")
	return cmd
}

func (c *Cli) runDaemon(ctx context.Context, pollInterval time.Duration) error {
	e, err := c.openEngine(ctx, true)
	if err != nil {
		return err
	}
	if err := e.start(ctx); err != nil {
		return errors.Join(err, e.Close())
	}

	c.logger.Info("Sync daemon started",
		"device_id", e.deviceID,
		"server", c.cfg.ServerURL,
		"state_dir", c.cfg.StateDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.watch(gctx, pollInterval)
		return nil
	})
	g.Go(func() error {
		e.logEvents(gctx)
		return nil
	})

	// Координатор может остановиться сам (ошибка хранилища); тогда завершаем и остальное
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-e.coord.Done():
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("sync coordinator stopped unexpectedly")
		}
	})

	waitErr := g.Wait()
	closeErr := e.Close()
	c.logger.Info("Sync daemon stopped")
	return errors.Join(waitErr, closeErr)
}

// watch опрашивает файлы фрагментов и превращает внешние правки в операции очереди
func (e *engine) watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	names := make([]string, 0, len(e.fragments))
	for name := range e.fragments {
		names = append(names, name)
	}
	sort.Strings(names)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, name := range names {
			value, changed, err := e.fragments[name].Poll()
			if err != nil {
				e.logger.Warn("Fragment file ignored", "fragment", name, "error", err)
				continue
			}
			if !changed {
				continue
			}

			op := &models.QueuedOperation{
				Type:           models.OperationCreate,
				TargetFragment: name,
				Data:           value,
				EnqueuedAt:     time.Now().UTC(),
			}
			if err := e.coord.Mutate(ctx, op); err != nil {
				if ctx.Err() == nil {
					e.logger.Error("Failed to queue fragment change", "fragment", name, "error", err)
				}
				continue
			}
			e.logger.Debug("Fragment change queued", "fragment", name)
		}
	}
}

// logEvents выводит события координатора в лог
func (e *engine) logEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.coord.Events():
			switch ev.Type {
			case clientsync.EventStatusChanged:
				e.logger.Info("Sync state changed",
					"state", ev.Status.State,
					"version", ev.Status.Version,
					"pending", ev.Status.PendingOperationCount)
			case clientsync.EventPermanentFailure:
				e.logger.Error("Operation failed permanently", "error", ev.Err)
			case clientsync.EventConflictUnresolved:
				e.logger.Warn("Conflict could not be resolved, will retry later", "error", ev.Err)
			case clientsync.EventCaptureFailed:
				e.logger.Warn("State capture keeps failing", "error", ev.Err)
			case clientsync.EventConflictsResolved:
				for _, rec := range ev.Conflicts {
					e.logger.Info("Conflict merged", "path", rec.Path(), "resolution", rec.Resolution)
				}
			}
		}
	}
}
