package embed

import (
	"context"
	"sync"
)

// GuardedProvider serializes embedding calls against one provider
// instance. Cold model loads and local inference are not reentrant; a
// second concurrent call must wait for the first rather than overlap it.
// Health checks and metadata reads pass through unguarded.
type GuardedProvider struct {
	inner Provider
	mu    sync.Mutex
}

var _ Provider = (*GuardedProvider)(nil)

// Guard wraps a provider with the reentrancy guard. Wrapping an already
// guarded provider returns it unchanged.
func Guard(inner Provider) Provider {
	if _, ok := inner.(*GuardedProvider); ok {
		return inner
	}
	return &GuardedProvider{inner: inner}
}

// Embed runs the inner call while holding the guard.
func (g *GuardedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Embed(ctx, text)
}

// EmbedBatch runs the inner call while holding the guard.
func (g *GuardedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.EmbedBatch(ctx, texts)
}

// HealthCheck passes through without the guard so a stuck embedding call
// cannot block health probes.
func (g *GuardedProvider) HealthCheck(ctx context.Context) Health {
	return g.inner.HealthCheck(ctx)
}

// Dimensions passes through to the inner provider.
func (g *GuardedProvider) Dimensions() int { return g.inner.Dimensions() }

// ProviderID passes through to the inner provider.
func (g *GuardedProvider) ProviderID() string { return g.inner.ProviderID() }

// ModelID passes through to the inner provider.
func (g *GuardedProvider) ModelID() string { return g.inner.ModelID() }

// Close closes the inner provider.
func (g *GuardedProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.Close()
}
