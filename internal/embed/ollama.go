package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaProvider generates embeddings via Ollama's HTTP API.
type OllamaProvider struct {
	client    *http.Client
	transport *http.Transport
	host      string
	model     string
	batchSize int

	embedTimeout time.Duration
	batchTimeout time.Duration

	mu     sync.RWMutex
	dims   int // 0 until first successful embedding
	closed bool
}

var _ Provider = (*OllamaProvider)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaProvider creates an Ollama-backed provider. Construction never
// contacts the server; availability is discovered through HealthCheck so
// a down Ollama degrades the index instead of failing startup.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	if cfg.OllamaHost == "" {
		cfg.OllamaHost = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}

	// Per-request context timeouts, not a client-wide timeout: single
	// embeds and batches need different bounds.
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	return &OllamaProvider{
		client:       &http.Client{Transport: transport},
		transport:    transport,
		host:         strings.TrimRight(cfg.OllamaHost, "/"),
		model:        cfg.Model,
		batchSize:    cfg.BatchSize,
		embedTimeout: cfg.EmbedTimeout,
		batchTimeout: cfg.BatchTimeout,
	}
}

// Embed generates the embedding for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	vecs, err := p.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting into
// provider-sized batches.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batchCtx, cancel := context.WithTimeout(ctx, p.batchTimeout)
		vecs, err := p.doEmbed(batchCtx, texts[start:end])
		cancel()
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		results = append(results, vecs...)
	}
	return results, nil
}

func (p *OllamaProvider) doEmbed(ctx context.Context, input []string) ([][]float32, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("provider is closed")
	}
	p.mu.RUnlock()

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: input})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if len(result.Embeddings) != len(input) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(input))
	}

	for i := range result.Embeddings {
		result.Embeddings[i] = normalizeVector(result.Embeddings[i])
	}

	// First success fixes the dimensionality.
	if len(result.Embeddings) > 0 {
		p.mu.Lock()
		if p.dims == 0 {
			p.dims = len(result.Embeddings[0])
		}
		p.mu.Unlock()
	}

	return result.Embeddings, nil
}

// HealthCheck verifies the server is reachable and the model is pulled.
func (p *OllamaProvider) HealthCheck(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return Health{Healthy: false, Message: err.Error()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Health{
			Healthy:    false,
			Message:    fmt.Sprintf("cannot reach Ollama at %s", p.host),
			Resolution: "start Ollama (`ollama serve`) or switch to the hash provider",
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Health{
			Healthy: false,
			Message: fmt.Sprintf("Ollama returned status %d", resp.StatusCode),
		}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Health{Healthy: false, Message: "cannot parse Ollama model list"}
	}

	want := strings.ToLower(p.model)
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == strings.Split(want, ":")[0] {
			return Health{Healthy: true}
		}
	}
	return Health{
		Healthy:    false,
		Message:    fmt.Sprintf("model %q not available", p.model),
		Resolution: fmt.Sprintf("run `ollama pull %s`", p.model),
	}
}

// Dimensions returns the detected dimensionality, 0 until known.
func (p *OllamaProvider) Dimensions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dims
}

// ProviderID returns "ollama".
func (p *OllamaProvider) ProviderID() string { return ProviderOllama }

// ModelID returns the configured model name.
func (p *OllamaProvider) ModelID() string { return p.model }

// Close releases idle connections.
func (p *OllamaProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.transport.CloseIdleConnections()
	return nil
}
