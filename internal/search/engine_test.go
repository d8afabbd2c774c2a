package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultidx/vaultidx/internal/embed"
	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/store"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// testEnv wires a real store, FTS index, vector index, and the hash
// provider into an engine.
type testEnv struct {
	store    *store.Store
	lexical  store.LexicalIndex
	vectors  *store.VectorIndex
	registry *embed.Registry
	provider embed.Provider
	engine   *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	lexical, err := store.NewFTSIndex(s.DB())
	require.NoError(t, err)

	vectors := store.NewVectorIndex(0)

	provider, err := embed.NewProvider(embed.Config{Provider: embed.ProviderHash})
	require.NoError(t, err)
	registry := embed.NewRegistry(nil)
	registry.Activate(provider)
	registry.CheckHealth(context.Background())

	engine, err := NewEngine(s, lexical, vectors, registry, 60, nil)
	require.NoError(t, err)

	return &testEnv{store: s, lexical: lexical, vectors: vectors,
		registry: registry, provider: provider, engine: engine}
}

// addNote indexes one single-chunk note across all indexes.
func (env *testEnv) addNote(t *testing.T, path, heading, text string) {
	t.Helper()
	ctx := context.Background()

	th := store.HashText(text)
	c := &store.Chunk{
		ID:        store.ChunkID(path, 1, th),
		FilePath:  path,
		Heading:   heading,
		StartLine: 1,
		EndLine:   5,
		Text:      text,
		TextHash:  th,
		CreatedAt: time.Now().UTC(),
	}
	vec, err := env.provider.Embed(ctx, text)
	require.NoError(t, err)
	c.Vector = vec

	file := &store.SourceFile{
		Path: path, ContentHash: store.HashText(text),
		ModifiedAt: time.Now().UTC(), LastIndexedAt: time.Now().UTC(),
	}
	require.NoError(t, env.store.ReplaceFile(ctx, file, []*store.Chunk{c}))
	require.NoError(t, env.lexical.Index(ctx, []*store.Chunk{c}))
	require.NoError(t, env.vectors.Add(ctx, []string{c.ID}, [][]float32{vec}))
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := env.engine.Search(context.Background(), q, Options{})
		require.Error(t, err)
		assert.Equal(t, vxerrors.ErrCodeQueryEmpty, vxerrors.GetCode(err))
	}
}

func TestSearch_HybridFindsAndScores(t *testing.T) {
	// Given: notes about different topics
	env := newTestEnv(t)
	env.addNote(t, "reference/contacts.md", "Contacts", "Sarah Chen - Phone: 555-1234, prefers email over calls")
	env.addNote(t, "daily/2026-08-20.md", "2026-08-20", "sourdough starter fed at noon")

	// When: searching
	resp, err := env.engine.Search(context.Background(), "Sarah phone number", Options{})
	require.NoError(t, err)

	// Then: the contact note is found in hybrid mode
	require.NotZero(t, resp.Total)
	assert.Equal(t, ModeHybrid, resp.Mode)
	assert.Nil(t, resp.Degraded)

	first := resp.Groups[0].Results[0]
	assert.Equal(t, "reference/contacts.md", first.Path)
	assert.Equal(t, 1.0, first.Score)
	assert.Contains(t, first.Snippet, "555-1234")
	assert.NotZero(t, first.StartLine)
}

func TestSearch_GroupsFollowCategoryPriority(t *testing.T) {
	// Given: matching notes across categories, with the daily note the
	// stronger textual match
	env := newTestEnv(t)
	env.addNote(t, "daily/2026-08-24.md", "Log", "budget budget budget discussion all day")
	env.addNote(t, "reference/finance.md", "Finance", "annual budget overview")
	env.addNote(t, "projects/site.md", "Site", "website budget line items")

	// When: searching
	resp, err := env.engine.Search(context.Background(), "budget", Options{MinScore: 0.01})
	require.NoError(t, err)
	require.NotZero(t, resp.Total)

	// Then: groups appear in fixed priority order, reference before
	// projects before daily, regardless of score
	var order []vault.Category
	for _, g := range resp.Groups {
		require.NotEmpty(t, g.Results)
		order = append(order, g.Category)
	}
	assert.Equal(t, []vault.Category{vault.CategoryReference, vault.CategoryProjects, vault.CategoryDaily}, order)
}

func TestSearch_SourceFilter(t *testing.T) {
	env := newTestEnv(t)
	env.addNote(t, "reference/a.md", "A", "shared keyword text")
	env.addNote(t, "inbox/b.md", "B", "shared keyword text too")

	resp, err := env.engine.Search(context.Background(), "keyword",
		Options{Sources: []string{"inbox"}, MinScore: 0.01})
	require.NoError(t, err)

	require.Len(t, resp.Groups, 1)
	assert.Equal(t, vault.CategoryInbox, resp.Groups[0].Category)
	for _, r := range resp.Groups[0].Results {
		assert.Equal(t, "inbox/b.md", r.Path)
	}
}

func TestSearch_SourceFilterAcceptsMultiple(t *testing.T) {
	env := newTestEnv(t)
	env.addNote(t, "reference/a.md", "A", "triangle geometry basics")
	env.addNote(t, "projects/b.md", "B", "triangle mesh renderer")
	env.addNote(t, "daily/2026-08-24.md", "Log", "drew a triangle today")

	resp, err := env.engine.Search(context.Background(), "triangle",
		Options{Sources: []string{"reference", "projects"}, MinScore: 0.01})
	require.NoError(t, err)

	var order []vault.Category
	for _, g := range resp.Groups {
		order = append(order, g.Category)
	}
	assert.Equal(t, []vault.Category{vault.CategoryReference, vault.CategoryProjects}, order)
}

func TestSearch_SourceFilterReachesBelowGlobalTopN(t *testing.T) {
	// Given: many strong matches in daily/ and one weaker match in
	// reference/ that would fall outside a global top-3
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		env.addNote(t, fmt.Sprintf("daily/2026-08-%02d.md", i+1), "Log",
			fmt.Sprintf("budget budget budget planning session number %d", i))
	}
	env.addNote(t, "reference/finance.md", "Finance", "one mention of budget among reference material")

	// When: restricting a small search to reference
	resp, err := env.engine.Search(context.Background(), "budget",
		Options{MaxResults: 3, Sources: []string{"reference"}, MinScore: 0.01})
	require.NoError(t, err)

	// Then: the reference match is found, not lost to the daily flood
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, vault.CategoryReference, resp.Groups[0].Category)
	assert.Equal(t, "reference/finance.md", resp.Groups[0].Results[0].Path)
}

func TestSearch_MaxResultsCap(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		env.addNote(t, "inbox/n"+string(rune('a'+i))+".md", "Note",
			"repeated topic sentence number "+string(rune('a'+i)))
	}

	resp, err := env.engine.Search(context.Background(), "topic",
		Options{MaxResults: 3, MinScore: 0.0})
	require.NoError(t, err)
	assert.LessOrEqual(t, resp.Total, 3)
}

func TestSearch_MinScoreFiltersWeakMatches(t *testing.T) {
	// Given: one strong match and several weak ones
	env := newTestEnv(t)
	env.addNote(t, "reference/hit.md", "Hit", "zebra zebra zebra migration patterns")
	env.addNote(t, "inbox/weak1.md", "W1", "a zebra appeared once among many other animals and plants and weather notes")
	env.addNote(t, "inbox/weak2.md", "W2", "another passing zebra mention in a long unrelated rambling text about cooking")

	// When: searching with a near-top threshold
	strict, err := env.engine.Search(context.Background(), "zebra migration", Options{MinScore: 0.995})
	require.NoError(t, err)
	loose, err := env.engine.Search(context.Background(), "zebra migration", Options{MinScore: 0.01})
	require.NoError(t, err)

	// Then: the threshold prunes results the loose query keeps
	assert.Less(t, strict.Total, loose.Total)
	require.NotZero(t, strict.Total)
	assert.Equal(t, "reference/hit.md", strict.Groups[0].Results[0].Path)
}

func TestSearch_DegradesWhenProviderNotReady(t *testing.T) {
	// Given: an index built while the provider was healthy
	env := newTestEnv(t)
	env.addNote(t, "reference/a.md", "A", "findable text content")

	// When: the provider goes away and a search runs
	env.registry.Activate(embed.NewDisabledProvider())
	env.registry.CheckHealth(context.Background())

	resp, err := env.engine.Search(context.Background(), "findable", Options{MinScore: 0.01})

	// Then: the search still succeeds, lexical-only, with the degraded
	// provider named
	require.NoError(t, err)
	assert.Equal(t, ModeLexical, resp.Mode)
	require.NotNil(t, resp.Degraded)
	assert.Equal(t, "disabled", resp.Degraded.Provider)
	assert.NotEmpty(t, resp.Degraded.Reason)
	require.NotZero(t, resp.Total)
}

func TestSearch_NoLexicalMatchesEmptyResponse(t *testing.T) {
	// Given: an index with embeddings disabled, so only the lexical
	// probe contributes
	env := newTestEnv(t)
	env.addNote(t, "inbox/a.md", "A", "completely unrelated content")
	env.registry.Activate(embed.NewDisabledProvider())
	env.registry.CheckHealth(context.Background())

	resp, err := env.engine.Search(context.Background(), "xylophone", Options{})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Groups)
}
