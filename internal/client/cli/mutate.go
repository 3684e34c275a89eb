package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/statesync/internal/models"
)

type mutateOptions struct {
	entityID string
	merge    bool
	noPush   bool
}

func newSetCommand(c *Cli) *cobra.Command {
	opts := &mutateOptions{}

	cmd := &cobra.Command{
		Use:   "set <fragment> <json>",
		Short: "Change a fragment and queue the change for sync",
		Long: `Change a fragment and queue the change for sync.

Without --entity the whole fragment is replaced (or merged with --merge).
With --entity the JSON record is upserted into the fragment collection.`,
		Example: `  statesync set coins 120
  statesync set pet '{"hunger":3}' --merge
  statesync set inventory '{"qty":2}' --entity apple`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("invalid JSON value: %w", err)
			}

			op := &models.QueuedOperation{
				Type:           models.OperationCreate,
				TargetFragment: args[0],
				EntityID:       opts.entityID,
				Data:           value,
			}
			if opts.merge || opts.entityID != "" {
				op.Type = models.OperationUpdate
			}
			return c.mutate(cmd.Context(), op, opts.noPush)
		},
	}

	cmd.Flags().StringVar(&opts.entityID, "entity", "", "entity id inside a collection fragment")
	cmd.Flags().BoolVar(&opts.merge, "merge", false, "merge record fields instead of replacing the fragment")
	cmd.Flags().BoolVar(&opts.noPush, "no-push", false, "only queue the change, do not contact the server")
	return cmd
}

func newDeleteCommand(c *Cli) *cobra.Command {
	opts := &mutateOptions{}

	cmd := &cobra.Command{
		Use:   "delete <fragment>",
		Short: "Delete a fragment or a collection entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := &models.QueuedOperation{
				Type:           models.OperationDelete,
				TargetFragment: args[0],
				EntityID:       opts.entityID,
			}
			return c.mutate(cmd.Context(), op, opts.noPush)
		},
	}

	cmd.Flags().StringVar(&opts.entityID, "entity", "", "entity id inside a collection fragment")
	cmd.Flags().BoolVar(&opts.noPush, "no-push", false, "only queue the change, do not contact the server")
	return cmd
}

// mutate применяет операцию к файлу фрагмента, ставит её в очередь и (по умолчанию) отправляет
func (c *Cli) mutate(ctx context.Context, op *models.QueuedOperation, noPush bool) error {
	return c.withEngine(ctx, func(ctx context.Context, e *engine) error {
		fragment, ok := e.fragments[op.TargetFragment]
		if !ok {
			return fmt.Errorf("unknown fragment %q", op.TargetFragment)
		}
		if err := op.Validate(); err != nil {
			return err
		}

		current, err := fragment.Read()
		if err != nil {
			return fmt.Errorf("failed to read fragment: %w", err)
		}
		payload := map[string]any{op.TargetFragment: current}
		if err := op.Apply(payload); err != nil {
			return err
		}

		// Удалённый фрагмент возвращается к значениям по умолчанию
		next, exists := payload[op.TargetFragment]
		if !exists {
			next = defaultsFor(op.TargetFragment)
		}
		if err := fragment.Set(next); err != nil {
			return fmt.Errorf("failed to update fragment: %w", err)
		}

		op.EnqueuedAt = time.Now().UTC()
		if err := e.coord.Mutate(ctx, op); err != nil {
			return err
		}

		if noPush {
			c.io.Printf("✓ Change queued (%d pending)\n", e.coord.Status().PendingOperationCount)
			return nil
		}
		if err := e.coord.Save(ctx); err != nil {
			return err
		}
		c.reportSync(e)
		return nil
	})
}
