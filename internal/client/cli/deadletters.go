package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeadLettersCommand(c *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "dead-letters",
		Short: "List operations that failed permanently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(ctx context.Context, e *engine) error {
				letters, err := e.store.ListDeadLetters(ctx)
				if err != nil {
					return fmt.Errorf("failed to list dead letters: %w", err)
				}
				if len(letters) == 0 {
					c.io.Println("No dead letters")
					return nil
				}
				return c.render(deadLetterTemplate, letters)
			})
		},
	}
}

func newRequeueCommand(c *Cli) *cobra.Command {
	var noPush bool

	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Move dead letters back to the queue and retry them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(ctx context.Context, e *engine) error {
				n, err := e.coord.RequeueDeadLetters(ctx)
				if err != nil {
					return fmt.Errorf("failed to requeue dead letters: %w", err)
				}
				c.io.Printf("✓ Requeued %d operation(s)\n", n)

				if n == 0 || noPush {
					return nil
				}
				if err := e.coord.Save(ctx); err != nil {
					return err
				}
				c.reportSync(e)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noPush, "no-push", false, "only requeue, do not contact the server")
	return cmd
}

func newResetCommand(c *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop queued and dead-lettered operations",
		Long: `Drop queued and dead-lettered operations.

Use when switching accounts; run 'statesync restore' afterwards to load the new account state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEngine(cmd.Context(), func(ctx context.Context, e *engine) error {
				if err := e.coord.Reset(ctx); err != nil {
					return err
				}
				c.io.Println("✓ Sync state reset")
				return nil
			})
		},
	}
}
