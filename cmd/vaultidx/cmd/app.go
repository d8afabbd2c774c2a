package cmd

import (
	"context"
	"log/slog"

	"github.com/vaultidx/vaultidx/internal/chunk"
	"github.com/vaultidx/vaultidx/internal/config"
	"github.com/vaultidx/vaultidx/internal/embed"
	"github.com/vaultidx/vaultidx/internal/logging"
	"github.com/vaultidx/vaultidx/internal/search"
	"github.com/vaultidx/vaultidx/internal/store"
	"github.com/vaultidx/vaultidx/internal/syncer"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	vault    *vault.Vault
	store    *store.Store
	lexical  store.LexicalIndex
	vectors  *store.VectorIndex
	registry *embed.Registry
	engine   *search.Engine
	syncer   *syncer.Syncer
	lock     *syncer.InstanceLock

	logCleanup func()
}

// newApp loads configuration and wires every component. withLock takes
// the single-instance lock on the data directory; commands that mutate
// the index need it.
func newApp(ctx context.Context, withLock bool) (*app, error) {
	cfg, err := config.Load(flagVault, flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.Level = cfg.LogLevel
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, logCleanup: logCleanup}

	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	a.vault, err = vault.New(cfg.VaultRoot)
	if err != nil {
		return fail(err)
	}

	if withLock {
		a.lock = syncer.NewInstanceLock(cfg.DataDir)
		if err := a.lock.Acquire(); err != nil {
			a.lock = nil
			return fail(err)
		}
	}

	a.store, err = store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return fail(err)
	}

	a.lexical, err = store.NewLexicalIndex(ctx, a.store, cfg.Search.LexicalBackend)
	if err != nil {
		return fail(err)
	}

	meta, err := a.store.GetMeta(ctx)
	if err != nil {
		return fail(err)
	}
	dims := 0
	if meta != nil {
		dims = meta.Dimensions
	}
	a.vectors, err = store.LoadVectorIndex(ctx, a.store, dims)
	if err != nil {
		return fail(err)
	}

	provider, err := embed.NewProvider(embed.Config{
		Provider:     cfg.Embeddings.Provider,
		Model:        cfg.Embeddings.Model,
		OllamaHost:   cfg.Embeddings.OllamaHost,
		BatchSize:    cfg.Embeddings.BatchSize,
		EmbedTimeout: cfg.Embeddings.EmbedTimeout,
		BatchTimeout: cfg.Embeddings.BatchTimeout,
	})
	if err != nil {
		return fail(err)
	}
	a.registry = embed.NewRegistry(logger)
	a.registry.Activate(provider)

	a.engine, err = search.NewEngine(a.store, a.lexical, a.vectors, a.registry,
		cfg.Search.RRFConstant, logger)
	if err != nil {
		return fail(err)
	}

	a.syncer = syncer.New(a.vault, a.store, a.lexical, a.vectors, a.registry,
		chunk.Options{}, logger)
	return a, nil
}

// Close releases everything newApp acquired, in reverse order.
func (a *app) Close() {
	if a.lexical != nil {
		_ = a.lexical.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.lock != nil {
		_ = a.lock.Release()
	}
	if a.logCleanup != nil {
		a.logCleanup()
	}
}

// searchOptions builds engine options from the loaded config.
func (a *app) searchOptions() search.Options {
	return search.Options{
		MaxResults: a.cfg.Search.MaxResults,
		MinScore:   a.cfg.Search.MinScore,
	}
}
