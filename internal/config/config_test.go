package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	// Given: a vault with no config file
	root := t.TempDir()

	// When: loading
	cfg, err := Load(root, "")
	require.NoError(t, err)

	// Then: built-in defaults apply
	assert.Equal(t, root, cfg.VaultRoot)
	assert.Equal(t, filepath.Join(root, ".vaultidx"), cfg.DataDir)
	assert.Equal(t, DefaultDebounceWindow, cfg.Sync.DebounceWindow)
	assert.Equal(t, DefaultMaxResults, cfg.Search.MaxResults)
	assert.Equal(t, DefaultMinScore, cfg.Search.MinScore)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, "fts5", cfg.Search.LexicalBackend)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.HTTPAddr)
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	// Given: a config file in the vault root
	root := t.TempDir()
	yaml := `
search:
  max_results: 30
  min_score: 0.5
embeddings:
  provider: hash
sync:
  debounce_window: 2s
log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "vaultidx.yaml"), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(root, "")
	require.NoError(t, err)

	// Then: file values win over defaults; untouched values keep defaults
	assert.Equal(t, 30, cfg.Search.MaxResults)
	assert.Equal(t, 0.5, cfg.Search.MinScore)
	assert.Equal(t, "hash", cfg.Embeddings.Provider)
	assert.Equal(t, 2*time.Second, cfg.Sync.DebounceWindow)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	yaml := "embeddings:\n  provider: hash\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "vaultidx.yaml"), []byte(yaml), 0o644))
	t.Setenv("VAULTIDX_PROVIDER", "disabled")
	t.Setenv("VAULTIDX_MIN_SCORE", "0.1")

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, "disabled", cfg.Embeddings.Provider)
	assert.Equal(t, 0.1, cfg.Search.MinScore)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "vaultidx.yaml"), []byte("search: ["), 0o644))

	_, err := Load(root, "")
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Search.MinScore = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.Search.LexicalBackend = "elasticsearch"
	assert.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.Embeddings.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = Default(t.TempDir())
	cfg.VaultRoot = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := &Config{VaultRoot: t.TempDir(), Embeddings: EmbeddingsConfig{Provider: "hash"}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultDebounceWindow, cfg.Sync.DebounceWindow)
	assert.Equal(t, DefaultMaxResults, cfg.Search.MaxResults)
	assert.Equal(t, "fts5", cfg.Search.LexicalBackend)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
}

func TestDatabasePath(t *testing.T) {
	cfg := Default("/vault")
	assert.Equal(t, filepath.Join("/vault", ".vaultidx", "index.db"), cfg.DatabasePath())
}
