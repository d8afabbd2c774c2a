package embed

import (
	"context"
	"log/slog"
	"sync"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// State is the provider lifecycle state.
type State string

const (
	// StateUninitialized means no health check has succeeded yet.
	StateUninitialized State = "uninitialized"
	// StateReady means the last health check succeeded.
	StateReady State = "ready"
	// StateDegraded means the last health check failed; lexical search
	// continues, vector writes are deferred.
	StateDegraded State = "degraded"
)

// Registry holds zero-or-one active provider plus the intended provider
// id for recovery. Switching providers is an explicit state transition;
// nothing dispatches to a provider the registry does not know about.
type Registry struct {
	mu         sync.RWMutex
	active     Provider
	intended   string
	state      State
	lastHealth Health
	logger     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{state: StateUninitialized, logger: logger}
}

// NewProvider constructs a provider for cfg.Provider, wrapped in the
// reentrancy guard.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return Guard(NewOllamaProvider(cfg)), nil
	case ProviderHash:
		return Guard(NewHashProvider()), nil
	case ProviderDisabled, "":
		return NewDisabledProvider(), nil
	default:
		return nil, vxerrors.New(vxerrors.ErrCodeUnknownProvider,
			"unknown embedding provider: "+cfg.Provider, nil)
	}
}

// Activate replaces the active provider, closing the previous one. The
// registry returns to uninitialized until a health check passes.
func (r *Registry) Activate(p Provider) {
	r.mu.Lock()
	prev := r.active
	r.active = p
	r.intended = p.ProviderID()
	r.state = StateUninitialized
	r.lastHealth = Health{}
	r.mu.Unlock()

	if prev != nil && prev != p {
		_ = prev.Close()
	}
	r.logger.Info("embedding provider activated",
		slog.String("provider", p.ProviderID()),
		slog.String("model", p.ModelID()))
}

// Active returns the active provider, nil if none.
func (r *Registry) Active() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Intended returns the provider id recorded for recovery.
func (r *Registry) Intended() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.intended
}

// State returns the current lifecycle state.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Ready reports whether vector operations may run.
func (r *Registry) Ready() bool {
	return r.State() == StateReady
}

// LastHealth returns the most recent health check result.
func (r *Registry) LastHealth() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastHealth
}

// CheckHealth probes the active provider and applies the state
// transition: uninitialized/degraded -> ready on success, ready ->
// degraded on failure. Returns the observed health.
func (r *Registry) CheckHealth(ctx context.Context) Health {
	p := r.Active()
	if p == nil {
		h := Health{Healthy: false, Message: "no active provider"}
		r.mu.Lock()
		r.state = StateUninitialized
		r.lastHealth = h
		r.mu.Unlock()
		return h
	}

	h := p.HealthCheck(ctx)

	r.mu.Lock()
	prev := r.state
	if h.Healthy {
		r.state = StateReady
	} else {
		r.state = StateDegraded
	}
	r.lastHealth = h
	next := r.state
	r.mu.Unlock()

	if prev != next {
		r.logger.Info("embedding provider state changed",
			slog.String("provider", p.ProviderID()),
			slog.String("from", string(prev)),
			slog.String("to", string(next)),
			slog.String("message", h.Message))
	}
	return h
}
