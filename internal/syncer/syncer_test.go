package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultidx/vaultidx/internal/chunk"
	"github.com/vaultidx/vaultidx/internal/embed"
	"github.com/vaultidx/vaultidx/internal/store"
	"github.com/vaultidx/vaultidx/internal/vault"
)

type syncEnv struct {
	vault    *vault.Vault
	store    *store.Store
	lexical  store.LexicalIndex
	vectors  *store.VectorIndex
	registry *embed.Registry
	syncer   *Syncer
}

func newSyncEnv(t *testing.T, providerID string) *syncEnv {
	t.Helper()
	v, err := vault.New(t.TempDir())
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	lexical, err := store.NewFTSIndex(s.DB())
	require.NoError(t, err)

	vectors := store.NewVectorIndex(0)

	provider, err := embed.NewProvider(embed.Config{Provider: providerID})
	require.NoError(t, err)
	registry := embed.NewRegistry(nil)
	registry.Activate(provider)
	registry.CheckHealth(context.Background())

	return &syncEnv{
		vault:    v,
		store:    s,
		lexical:  lexical,
		vectors:  vectors,
		registry: registry,
		syncer:   New(v, s, lexical, vectors, registry, chunk.Options{}, nil),
	}
}

func (env *syncEnv) writeNote(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, env.vault.Write(rel, content, vault.WriteOptions{Replace: true}))
}

func TestFullSync_IndexesVault(t *testing.T) {
	// Given: a vault with two notes
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "reference/go.md", "# Go\n\nError handling notes.")
	env.writeNote(t, "inbox/todo.md", "# Todo\n\nBuy milk.")

	// When: running a full sync
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// Then: both notes are indexed with vectors
	assert.Equal(t, 2, stats.Indexed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Pending)

	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Files)
	assert.Equal(t, counts.Chunks, counts.WithVector)
	assert.Equal(t, counts.Chunks, env.vectors.Count())

	// And: notes are searchable
	results, err := env.lexical.Search(context.Background(), "milk", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFullSync_RepeatedSentenceParagraph(t *testing.T) {
	// Given: a note whose one oversized paragraph repeats the same
	// sentence, so sentence-split chunks share text and line range
	env := newSyncEnv(t, embed.ProviderHash)
	body := strings.Repeat("The quarterly report was filed on time. ", 400)
	env.writeNote(t, "reference/reports.md", "# Reports\n\n"+body)

	// When: running a full sync
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// Then: the note indexes fully, each chunk under a distinct id
	assert.Equal(t, 1, stats.Indexed)
	assert.Zero(t, stats.Failed)
	assert.Greater(t, stats.Chunks, 1)

	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, counts.Chunks)
}

func TestFullSync_SkipsUnchangedFiles(t *testing.T) {
	// Given: a synced vault
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "a.md", "# A\n\ncontent")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// When: syncing again without changes
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// Then: the unchanged file is skipped by content hash
	assert.Zero(t, stats.Indexed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestFullSync_ReindexesChangedFile(t *testing.T) {
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "a.md", "# A\n\noriginal wording")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	env.writeNote(t, "a.md", "# A\n\nreplacement wording")
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)

	// Old content stops matching; new content matches.
	results, err := env.lexical.Search(context.Background(), "original", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	results, err = env.lexical.Search(context.Background(), "replacement", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFullSync_RemovesDeletedFiles(t *testing.T) {
	// Given: two synced notes, then one removed from disk
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "keep.md", "# Keep\n\nstays around")
	env.writeNote(t, "gone.md", "# Gone\n\ndisappears soon")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(env.vault.Root(), "gone.md")))

	// When: syncing again
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// Then: the deleted note is gone from every index
	assert.Equal(t, 1, stats.Deleted)

	results, err := env.lexical.Search(context.Background(), "disappears", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Files)
	assert.Equal(t, counts.Chunks, env.vectors.Count())
}

func TestApply_EventBatch(t *testing.T) {
	// Given: a synced vault
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "a.md", "# A\n\nfirst version")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// When: applying a batch with a modify and a create
	env.writeNote(t, "a.md", "# A\n\nsecond version")
	env.writeNote(t, "b.md", "# B\n\nbrand new note")
	env.syncer.Apply(context.Background(), []Event{
		{Path: "a.md", Op: OpModify},
		{Path: "b.md", Op: OpCreate},
	})

	// Then: both changes are reflected
	results, err := env.lexical.Search(context.Background(), "second", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	results, err = env.lexical.Search(context.Background(), "brand", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// When: applying a delete
	require.NoError(t, os.Remove(filepath.Join(env.vault.Root(), "b.md")))
	env.syncer.Apply(context.Background(), []Event{{Path: "b.md", Op: OpDelete}})

	// Then: the note is gone from the index
	results, err = env.lexical.Search(context.Background(), "brand", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSync_DisabledProviderLeavesChunksPending(t *testing.T) {
	// Given: embeddings disabled
	env := newSyncEnv(t, embed.ProviderDisabled)
	env.writeNote(t, "a.md", "# A\n\nlexical only content")

	// When: syncing
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// Then: the note indexes lexically, chunks stay vector-pending
	assert.Equal(t, 1, stats.Indexed)
	assert.NotZero(t, stats.Pending)
	assert.Zero(t, env.vectors.Count())

	results, err := env.lexical.Search(context.Background(), "lexical", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRecoverPending_EmbedsBacklog(t *testing.T) {
	// Given: a vault synced while embeddings were disabled
	env := newSyncEnv(t, embed.ProviderDisabled)
	env.writeNote(t, "a.md", "# A\n\nwaiting for vectors")
	env.writeNote(t, "b.md", "# B\n\nalso waiting")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)
	require.Zero(t, env.vectors.Count())

	// When: the provider becomes available and recovery runs
	hash, err := embed.NewProvider(embed.Config{Provider: embed.ProviderHash})
	require.NoError(t, err)
	env.registry.Activate(hash)
	env.registry.CheckHealth(context.Background())
	require.NoError(t, env.syncer.ReconcileProvider(context.Background()))

	recovered, err := env.syncer.RecoverPending(context.Background(), 1)
	require.NoError(t, err)

	// Then: every pending chunk got a vector, in the store and in memory
	assert.NotZero(t, recovered)
	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.VectorPending)
	assert.Equal(t, counts.Chunks, env.vectors.Count())
}

func TestProviderSwitch_ResetsStoredVectors(t *testing.T) {
	// Given: a vault fully embedded with the hash provider
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "a.md", "# A\n\nsome note text")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)
	require.NotZero(t, env.vectors.Count())

	// When: switching to a different provider
	other := &renamedProvider{Provider: embed.NewHashProvider(), id: "other"}
	env.registry.Activate(embed.Guard(other))
	env.registry.CheckHealth(context.Background())
	require.NoError(t, env.syncer.ReconcileProvider(context.Background()))

	// Then: stored vectors are cleared and the memory index is empty
	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.WithVector)
	assert.Equal(t, counts.Chunks, counts.VectorPending)
	assert.Zero(t, env.vectors.Count())

	meta, err := env.store.GetMeta(context.Background())
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "other", meta.ProviderID)

	// And: recovery re-embeds everything under the new provider
	recovered, err := env.syncer.RecoverPending(context.Background(), 8)
	require.NoError(t, err)
	assert.NotZero(t, recovered)
	counts, err = env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.VectorPending)
}

func TestRebuild_FromScratch(t *testing.T) {
	// Given: a synced vault
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "a.md", "# A\n\nrebuildable content")
	_, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)

	// When: rebuilding
	stats, err := env.syncer.Rebuild(context.Background())
	require.NoError(t, err)

	// Then: everything is re-indexed and searchable
	assert.Equal(t, 1, stats.Indexed)
	results, err := env.lexical.Search(context.Background(), "rebuildable", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	counts, err := env.store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Files)
	assert.Equal(t, counts.Chunks, counts.WithVector)
}

func TestRebuild_ReusesEmbeddingCache(t *testing.T) {
	// Given: a fully embedded vault
	env := newSyncEnv(t, embed.ProviderHash)
	env.writeNote(t, "a.md", "# A\n\nstable text that does not change")
	stats, err := env.syncer.FullSync(context.Background())
	require.NoError(t, err)
	require.NotZero(t, stats.Embedded)
	require.Zero(t, stats.CacheHits)

	// When: rebuilding without content changes
	stats, err = env.syncer.Rebuild(context.Background())
	require.NoError(t, err)

	// Then: every vector comes from the embedding cache
	assert.Zero(t, stats.Embedded)
	assert.Equal(t, stats.Chunks, stats.CacheHits)
	assert.NotZero(t, stats.CacheHits)
}

// renamedProvider makes the hash provider look like a different one.
type renamedProvider struct {
	embed.Provider
	id string
}

func (r *renamedProvider) ProviderID() string { return r.id }
