package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vaultidx/vaultidx/internal/mcp"
	"github.com/vaultidx/vaultidx/internal/syncer"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the vault to AI agents over MCP on stdio",
		Long: `Runs the MCP server on stdio for agent clients, with the sync
service running alongside so searches stay fresh.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := syncer.NewRunner(a.vault, a.syncer, a.registry,
				a.cfg.Sync.DebounceWindow, a.logger)
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(a.vault, a.engine, a.logger)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return runner.Run(gctx)
			})
			g.Go(func() error {
				return srv.Serve(gctx)
			})
			return g.Wait()
		},
	}
}
