package syncer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultidx/vaultidx/internal/embed"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// healthInterval is how often the active provider is probed while the
// runner is live.
const healthInterval = 30 * time.Second

// Runner ties the watcher, the syncer, and provider health together
// into the long-running sync loop.
type Runner struct {
	syncer   *Syncer
	watcher  *Watcher
	registry *embed.Registry
	logger   *slog.Logger
}

// NewRunner builds the run loop for a serving process.
func NewRunner(v *vault.Vault, syncer *Syncer, registry *embed.Registry,
	debounce time.Duration, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := NewWatcher(v, debounce, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{
		syncer:   syncer,
		watcher:  watcher,
		registry: registry,
		logger:   logger,
	}, nil
}

// Run blocks until the context is cancelled. It performs an initial
// health check and full sync, then applies watcher batches as they
// arrive and retries vector-pending chunks whenever the provider is
// healthy again.
func (r *Runner) Run(ctx context.Context) error {
	r.registry.CheckHealth(ctx)

	if _, err := r.syncer.FullSync(ctx); err != nil {
		return err
	}
	if r.registry.Ready() {
		if _, err := r.syncer.RecoverPending(ctx, DefaultRecoverBatch); err != nil {
			r.logger.Warn("vector recovery failed", slog.String("error", err.Error()))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.watcher.Start(gctx)
	})
	g.Go(func() error {
		r.loop(gctx)
		return nil
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (r *Runner) loop(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.watcher.Stop()
			return
		case batch, ok := <-r.watcher.Batches():
			if !ok {
				return
			}
			r.syncer.Apply(ctx, batch)
		case <-ticker.C:
			wasReady := r.registry.Ready()
			r.registry.CheckHealth(ctx)
			if !wasReady && r.registry.Ready() {
				// Provider came back; clear the vector-pending backlog.
				if _, err := r.syncer.RecoverPending(ctx, DefaultRecoverBatch); err != nil {
					r.logger.Warn("vector recovery failed", slog.String("error", err.Error()))
				}
			}
		}
	}
}
