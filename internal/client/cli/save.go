package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/statesync/internal/models"
)

func newSaveCommand(c *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Capture local state and push it to the server now",
		Long: `Capture local state and push it to the server now.

If the server is unreachable the pending operations stay queued
and are delivered by a later save or by 'statesync run'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(ctx context.Context, e *engine) error {
				if err := e.coord.Save(ctx); err != nil {
					return err
				}
				c.reportSync(e)
				return nil
			})
		},
	}
}

func newRestoreCommand(c *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace local state with the server copy",
		Long: `Replace local state with the server copy.

Pending operations are discarded. Use on a new device or to resynchronize manually.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(ctx context.Context, e *engine) error {
				res, err := e.coord.Restore(ctx)
				if err != nil {
					return err
				}

				c.io.Printf("✓ Restored version %d\n", e.coord.Status().Version)
				if len(res.Defaulted) > 0 {
					c.io.Printf("Defaults applied to: %s\n", strings.Join(res.Defaulted, ", "))
				}
				for _, corrupt := range res.Corrupt {
					c.io.Printf("⚠️  %v\n", corrupt)
				}
				return nil
			})
		},
	}
}

// reportSync печатает итог синхронизации одной строкой
func (c *Cli) reportSync(e *engine) {
	st := e.coord.Status()
	switch st.State {
	case models.StateOffline:
		c.io.Printf("⚠️  Server unreachable: %d operation(s) queued for later delivery\n", st.PendingOperationCount)
	default:
		c.io.Printf("✓ Synchronized at version %d\n", st.Version)
	}
	if st.DeadLetterCount > 0 {
		c.io.Printf("⚠️  %d operation(s) failed permanently, see 'statesync dead-letters'\n", st.DeadLetterCount)
	}
}
