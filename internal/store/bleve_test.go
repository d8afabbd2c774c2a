package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	// Given: an in-memory bleve index with a few chunks
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{
		ftsChunk("c1", "Contacts", "Sarah Chen - Phone: 555-1234"),
		ftsChunk("c2", "Groceries", "milk eggs bread"),
	}))

	// When: searching
	results, err := idx.Search(ctx, "sarah phone", 10)
	require.NoError(t, err)

	// Then: the matching chunk surfaces with matched terms
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.NotEmpty(t, results[0].MatchedTerms)
}

func TestBleveIndex_Delete(t *testing.T) {
	idx, err := NewBleveIndex()
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{
		ftsChunk("c1", "", "target text"),
		ftsChunk("c2", "", "other text"),
	}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	results, err := idx.Search(ctx, "target", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewLexicalIndex_Backends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Default and explicit fts5 both build the FTS index.
	idx, err := NewLexicalIndex(ctx, s, "")
	require.NoError(t, err)
	_, ok := idx.(*FTSIndex)
	assert.True(t, ok)

	idx, err = NewLexicalIndex(ctx, s, "bleve")
	require.NoError(t, err)
	_, ok = idx.(*BleveIndex)
	assert.True(t, ok)

	_, err = NewLexicalIndex(ctx, s, "lucene")
	assert.Error(t, err)
}

func TestNewLexicalIndex_BleveReloadsStoredChunks(t *testing.T) {
	// Given: a store with persisted chunks
	s := newTestStore(t)
	ctx := context.Background()
	c := testChunk("a.md", "searchable content here", 1)
	require.NoError(t, s.ReplaceFile(ctx, testFile("a.md", "h"), []*Chunk{c}))

	// When: opening the bleve backend, which is memory-only
	idx, err := NewLexicalIndex(ctx, s, "bleve")
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	// Then: stored chunks are searchable without a reindex
	results, err := idx.Search(ctx, "searchable", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, c.ID, results[0].ChunkID)
}
