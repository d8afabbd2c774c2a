// Package embed provides the pluggable embedding subsystem: a single
// capability interface, concrete providers (remote Ollama, local hash
// model, disabled), and a registry tracking the active provider and its
// health state. Degradation is observable, never fatal: callers keep the
// lexical index current and mark chunks vector-pending while a provider
// is down.
package embed

import (
	"context"
	"math"
	"time"
)

// Provider identifiers.
const (
	ProviderOllama   = "ollama"
	ProviderHash     = "hash"
	ProviderDisabled = "disabled"
)

// External call timeouts. Local index operations are never time-bounded;
// these apply only to provider calls that may hit the network or a cold
// model load.
const (
	DefaultEmbedTimeout = 30 * time.Second
	DefaultBatchTimeout = 60 * time.Second
	DefaultBatchSize    = 32
)

// HashDimensions is the fixed dimensionality of the local hash provider.
const HashDimensions = 256

// Health is the result of a provider health check.
type Health struct {
	Healthy    bool
	Message    string
	Resolution string
}

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// HealthCheck probes the provider without side effects.
	HealthCheck(ctx context.Context) Health

	// Dimensions returns the embedding dimension, 0 until the first
	// successful embedding reveals it.
	Dimensions() int

	// ProviderID returns the provider identifier ("ollama", "hash", ...).
	ProviderID() string

	// ModelID returns the model identifier.
	ModelID() string

	// Close releases resources.
	Close() error
}

// Config configures provider construction.
type Config struct {
	Provider     string
	Model        string
	OllamaHost   string
	BatchSize    int
	EmbedTimeout time.Duration
	BatchTimeout time.Duration
}

// normalizeVector normalizes a vector to unit length in place and
// returns it. Zero vectors are returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
	return v
}
