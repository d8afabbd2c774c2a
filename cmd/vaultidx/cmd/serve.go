package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vaultidx/vaultidx/internal/server"
	"github.com/vaultidx/vaultidx/internal/syncer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service and the admin HTTP API",
		Long: `Performs a full sync, then watches the vault for changes and serves
the admin HTTP API until interrupted.`,
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
			srv := server.New(a.cfg, a.vault, a.store, a.engine, a.syncer, a.registry, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return runner.Run(gctx)
			})
			g.Go(func() error {
				return srv.Start()
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}
