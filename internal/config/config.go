// Package config loads and validates vaultidx configuration.
//
// Resolution order, lowest to highest priority:
//  1. built-in defaults
//  2. config file (vaultidx.yaml in the vault root, or --config)
//  3. VAULTIDX_* environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default tuning values. Chunk sizes follow the chunker's token budget;
// the debounce window requires a full quiet period before a sync pass runs.
const (
	DefaultDebounceWindow = 1500 * time.Millisecond
	DefaultMaxResults     = 15
	DefaultMinScore       = 0.25
	DefaultRRFConstant    = 60
	DefaultEmbedTimeout   = 30 * time.Second
	DefaultBatchTimeout   = 60 * time.Second
	DefaultHTTPAddr       = "127.0.0.1:7777"
)

// Config is the complete vaultidx configuration.
type Config struct {
	// VaultRoot is the directory of markdown notes. Always authoritative;
	// the index can be deleted and rebuilt from it at any time.
	VaultRoot string `yaml:"vault_root"`

	// DataDir holds derived state: the index database and logs.
	// Defaults to <vault_root>/.vaultidx.
	DataDir string `yaml:"data_dir"`

	Sync       SyncConfig       `yaml:"sync"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
	LogLevel   string           `yaml:"log_level"`
}

// SyncConfig configures the sync service.
type SyncConfig struct {
	// DebounceWindow is the quiet period required before a watch burst is
	// flushed into one incremental pass. The timer resets on every event.
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// SearchConfig configures hybrid search.
type SearchConfig struct {
	// MaxResults is the default result cap per query.
	MaxResults int `yaml:"max_results"`

	// MinScore drops fused results below this threshold (0-1).
	MinScore float64 `yaml:"min_score"`

	// RRFConstant is the reciprocal rank fusion smoothing parameter (k).
	RRFConstant int `yaml:"rrf_constant"`

	// LexicalBackend selects the lexical index: "fts5" (default, shares the
	// index database) or "bleve" (in-memory, rebuilt on open).
	LexicalBackend string `yaml:"lexical_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is the intended provider: "ollama", "hash", or "disabled".
	Provider string `yaml:"provider"`

	// Model is the embedding model identifier (provider-specific).
	Model string `yaml:"model"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host"`

	// BatchSize is the number of texts per batch request.
	BatchSize int `yaml:"batch_size"`

	// EmbedTimeout bounds a single external embed call.
	EmbedTimeout time.Duration `yaml:"embed_timeout"`

	// BatchTimeout bounds an external batch embed call.
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// ServerConfig configures the admin HTTP surface and MCP transport.
type ServerConfig struct {
	// HTTPAddr is the listen address for the admin JSON API.
	HTTPAddr string `yaml:"http_addr"`
}

// Default returns the built-in defaults for the given vault root.
func Default(vaultRoot string) *Config {
	return &Config{
		VaultRoot: vaultRoot,
		DataDir:   filepath.Join(vaultRoot, ".vaultidx"),
		Sync: SyncConfig{
			DebounceWindow: DefaultDebounceWindow,
		},
		Search: SearchConfig{
			MaxResults:     DefaultMaxResults,
			MinScore:       DefaultMinScore,
			RRFConstant:    DefaultRRFConstant,
			LexicalBackend: "fts5",
		},
		Embeddings: EmbeddingsConfig{
			Provider:     "ollama",
			Model:        "nomic-embed-text",
			OllamaHost:   "http://localhost:11434",
			BatchSize:    32,
			EmbedTimeout: DefaultEmbedTimeout,
			BatchTimeout: DefaultBatchTimeout,
		},
		Server: ServerConfig{
			HTTPAddr: DefaultHTTPAddr,
		},
		LogLevel: "info",
	}
}

// Load reads configuration for a vault root. A missing config file is not
// an error; defaults plus environment overrides apply.
func Load(vaultRoot, configPath string) (*Config, error) {
	cfg := Default(vaultRoot)

	if configPath == "" {
		configPath = filepath.Join(vaultRoot, "vaultidx.yaml")
	}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies VAULTIDX_* environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("VAULTIDX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("VAULTIDX_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("VAULTIDX_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("VAULTIDX_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("VAULTIDX_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VAULTIDX_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("VAULTIDX_MIN_SCORE"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil && s >= 0 && s <= 1 {
			c.Search.MinScore = s
		}
	}
}

// Validate checks configuration invariants, filling zero values with
// defaults where a zero has no meaning.
func (c *Config) Validate() error {
	if c.VaultRoot == "" {
		return fmt.Errorf("vault_root is required")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.VaultRoot, ".vaultidx")
	}
	if c.Sync.DebounceWindow <= 0 {
		c.Sync.DebounceWindow = DefaultDebounceWindow
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = DefaultMaxResults
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be in [0,1], got %v", c.Search.MinScore)
	}
	if c.Search.RRFConstant <= 0 {
		c.Search.RRFConstant = DefaultRRFConstant
	}
	switch c.Search.LexicalBackend {
	case "", "fts5", "bleve":
		if c.Search.LexicalBackend == "" {
			c.Search.LexicalBackend = "fts5"
		}
	default:
		return fmt.Errorf("search.lexical_backend must be fts5 or bleve, got %q", c.Search.LexicalBackend)
	}
	switch c.Embeddings.Provider {
	case "ollama", "hash", "disabled":
	default:
		return fmt.Errorf("embeddings.provider must be ollama, hash, or disabled, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		c.Embeddings.BatchSize = 32
	}
	if c.Embeddings.EmbedTimeout <= 0 {
		c.Embeddings.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.Embeddings.BatchTimeout <= 0 {
		c.Embeddings.BatchTimeout = DefaultBatchTimeout
	}
	return nil
}

// DatabasePath returns the path of the index database file. Deleting this
// file never affects the markdown notes.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "index.db")
}
