package embed

import (
	"context"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// DisabledProvider is the explicit no-op: search stays lexical-only and
// sync marks every chunk vector-pending. Selecting it is a configuration
// choice, not a failure.
type DisabledProvider struct{}

var _ Provider = (*DisabledProvider)(nil)

// NewDisabledProvider creates the no-op provider.
func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

// Embed always fails: there is no model to call.
func (p *DisabledProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, vxerrors.ProviderUnavailable(ProviderDisabled, nil)
}

// EmbedBatch always fails.
func (p *DisabledProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, vxerrors.ProviderUnavailable(ProviderDisabled, nil)
}

// HealthCheck reports unhealthy with the reason.
func (p *DisabledProvider) HealthCheck(ctx context.Context) Health {
	return Health{
		Healthy:    false,
		Message:    "embeddings are disabled",
		Resolution: "set embeddings.provider to ollama or hash to enable vector search",
	}
}

// Dimensions is always 0.
func (p *DisabledProvider) Dimensions() int { return 0 }

// ProviderID returns "disabled".
func (p *DisabledProvider) ProviderID() string { return ProviderDisabled }

// ModelID returns "none".
func (p *DisabledProvider) ModelID() string { return "none" }

// Close is a no-op.
func (p *DisabledProvider) Close() error { return nil }
