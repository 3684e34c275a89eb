package cli

import (
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/iudanet/statesync/internal/client/storage"
	clientsync "github.com/iudanet/statesync/internal/client/sync"
	"github.com/iudanet/statesync/internal/models"
)

// statusConflictLimit - сколько последних конфликтов показывает status
const statusConflictLimit = 5

type statusView struct {
	DeviceID      string
	Status        clientsync.Status
	Conflicts     []models.ConflictRecord
	ConflictTotal int
}

func newStatusCommand(c *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(ctx context.Context, e *engine) error {
				return c.printStatus(ctx, e)
			})
		},
	}
}

func (c *Cli) printStatus(ctx context.Context, e *engine) error {
	view := statusView{
		DeviceID: e.deviceID,
		Status:   e.coord.Status(),
	}

	// Журнал конфликтов живёт в снапшоте; показываем самые свежие
	snap, err := e.store.LoadSnapshot(ctx)
	switch {
	case err == nil:
		view.ConflictTotal = len(snap.ConflictLog)
		for i := len(snap.ConflictLog) - 1; i >= 0 && len(view.Conflicts) < statusConflictLimit; i-- {
			view.Conflicts = append(view.Conflicts, snap.ConflictLog[i])
		}
	case errors.Is(err, storage.ErrSnapshotNotFound):
	default:
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	return c.render(statusTemplate, view)
}

func (c *Cli) render(text string, data any) error {
	tmpl, err := template.New("out").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(writerFunc(func(p []byte) (int, error) {
		c.io.Printf("%s", p)
		return len(p), nil
	}), data); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	return nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
