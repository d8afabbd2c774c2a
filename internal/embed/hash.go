package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
)

// HashProvider is the local in-process model: deterministic hash-based
// embeddings over word tokens and character trigrams. No network, no
// model download, reduced semantic quality. It never degrades.
type HashProvider struct {
	mu     sync.RWMutex
	closed bool
}

var _ Provider = (*HashProvider)(nil)

// Feature weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var wordToken = regexp.MustCompile(`[a-zA-Z0-9]+`)

// proseStopWords filters high-frequency words that carry no retrieval
// signal in notes.
var proseStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "is": true, "it": true,
	"for": true, "on": true, "with": true, "as": true, "at": true,
	"this": true, "that": true, "be": true, "are": true, "was": true,
}

// NewHashProvider creates a hash-based local provider.
func NewHashProvider() *HashProvider {
	return &HashProvider{}
}

// Embed generates a deterministic embedding for a single text.
func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("provider is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, HashDimensions), nil
	}
	return normalizeVector(p.generate(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (p *HashProvider) generate(text string) []float32 {
	vector := make([]float32, HashDimensions)

	lower := strings.ToLower(text)
	for _, token := range wordToken.FindAllString(lower, -1) {
		if proseStopWords[token] {
			continue
		}
		vector[hashToIndex(token)] += tokenWeight
	}

	compact := strings.Join(strings.Fields(lower), " ")
	for i := 0; i+ngramSize <= len(compact); i++ {
		vector[hashToIndex(compact[i:i+ngramSize])] += ngramWeight
	}

	return vector
}

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % HashDimensions)
}

// HealthCheck always succeeds: the hash provider has no external
// dependency.
func (p *HashProvider) HealthCheck(ctx context.Context) Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return Health{Healthy: false, Message: "provider is closed"}
	}
	return Health{Healthy: true}
}

// Dimensions returns the fixed hash dimensionality.
func (p *HashProvider) Dimensions() int { return HashDimensions }

// ProviderID returns "hash".
func (p *HashProvider) ProviderID() string { return ProviderHash }

// ModelID identifies the hash scheme, versioned so a scheme change
// invalidates cached vectors.
func (p *HashProvider) ModelID() string { return "hash-v1" }

// Close marks the provider closed.
func (p *HashProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
