package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultidx/vaultidx/internal/syncer"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Run a one-shot full sync of the vault",
		Long: `Scans every markdown note, indexes changed files, removes deleted
ones, and embeds pending chunks if the provider is reachable. Safe to
run repeatedly; unchanged files are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			a.registry.CheckHealth(ctx)

			stats, err := a.syncer.FullSync(ctx)
			if err != nil {
				return err
			}
			if a.registry.Ready() && stats.Pending > 0 {
				if _, err := a.syncer.RecoverPending(ctx, syncer.DefaultRecoverBatch); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed:  %d\n", stats.Indexed)
			fmt.Fprintf(out, "Skipped:  %d\n", stats.Skipped)
			fmt.Fprintf(out, "Deleted:  %d\n", stats.Deleted)
			if stats.Failed > 0 {
				fmt.Fprintf(out, "Failed:   %d\n", stats.Failed)
			}
			fmt.Fprintf(out, "Duration: %s\n", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
