package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index counts and embedding provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			health := a.registry.CheckHealth(ctx)

			counts, err := a.store.Counts(ctx)
			if err != nil {
				return err
			}
			meta, err := a.store.GetMeta(ctx)
			if err != nil {
				return err
			}

			db := "healthy"
			if !a.store.Healthy(ctx) {
				db = "unhealthy"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vault:    %s\n", a.vault.Root())
			fmt.Fprintf(out, "Database: %s\n", db)
			fmt.Fprintf(out, "Files:    %d\n", counts.Files)
			fmt.Fprintf(out, "Chunks:   %d (%d with vectors, %d pending)\n",
				counts.Chunks, counts.WithVector, counts.VectorPending)
			fmt.Fprintf(out, "Provider: %s (%s)\n", a.registry.Intended(), a.registry.State())
			if !health.Healthy && health.Message != "" {
				fmt.Fprintf(out, "          %s\n", health.Message)
			}
			if meta != nil {
				fmt.Fprintf(out, "Model:    %s/%s, %d dimensions\n",
					meta.ProviderID, meta.ModelID, meta.Dimensions)
				if !meta.LastFullSyncAt.IsZero() {
					fmt.Fprintf(out, "Synced:   %s\n", meta.LastFullSyncAt.Format("2006-01-02 15:04:05 MST"))
				}
			}
			return nil
		},
	}
}
