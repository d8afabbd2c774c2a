package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Discard the index and rebuild it from the notes",
		Long: `Drops all indexed files, chunks, and vectors, then performs a full
sync from scratch. The embedding cache survives, so re-embedding
unchanged text is free.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			a.registry.CheckHealth(ctx)

			stats, err := a.syncer.Rebuild(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rebuilt index: %d files indexed", stats.Indexed)
			if stats.Failed > 0 {
				fmt.Fprintf(out, ", %d failed", stats.Failed)
			}
			if stats.Pending > 0 {
				fmt.Fprintf(out, ", %d chunks awaiting vectors", stats.Pending)
			}
			fmt.Fprintf(out, " (%s)\n", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
