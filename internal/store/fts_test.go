package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFTS(t *testing.T) (*Store, *FTSIndex) {
	t.Helper()
	s := newTestStore(t)
	idx, err := NewFTSIndex(s.DB())
	require.NoError(t, err)
	return s, idx
}

func ftsChunk(id, heading, text string) *Chunk {
	return &Chunk{ID: id, Heading: heading, Text: text}
}

func TestFTSIndex_IndexAndSearch(t *testing.T) {
	// Given: indexed chunks
	_, idx := newTestFTS(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{
		ftsChunk("c1", "Contacts", "Sarah Chen - Phone: 555-1234, prefers email"),
		ftsChunk("c2", "Groceries", "milk eggs bread"),
		ftsChunk("c3", "Meeting", "Sarah presented the roadmap"),
	}))

	// When: searching with terms that partially match
	results, err := idx.Search(ctx, "Sarah phone", 10)
	require.NoError(t, err)

	// Then: the chunk matching both terms ranks first
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Greater(t, results[0].Score, 0.0)

	// And: the single-term match still surfaces
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	assert.Contains(t, ids, "c3")
	assert.NotContains(t, ids, "c2")
}

func TestFTSIndex_HeadingWeighted(t *testing.T) {
	// Given: one chunk with the term in its heading, one in its body
	_, idx := newTestFTS(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{
		ftsChunk("heading-hit", "Budget Planning", "notes from the session"),
		ftsChunk("body-hit", "Session", "we discussed the budget briefly"),
	}))

	// When: searching the term
	results, err := idx.Search(ctx, "budget", 10)
	require.NoError(t, err)

	// Then: the heading match outranks the body match
	require.Len(t, results, 2)
	assert.Equal(t, "heading-hit", results[0].ChunkID)
}

func TestFTSIndex_ReindexReplacesContent(t *testing.T) {
	// Given: a chunk indexed with old text
	_, idx := newTestFTS(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{ftsChunk("c1", "", "obsolete wording")}))

	// When: indexing the same id with new text
	require.NoError(t, idx.Index(ctx, []*Chunk{ftsChunk("c1", "", "fresh wording")}))

	// Then: the old text no longer matches, the new one does
	results, err := idx.Search(ctx, "obsolete", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "fresh", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)

	// And: no duplicate rows were left behind
	results, err = idx.Search(ctx, "wording", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFTSIndex_Delete(t *testing.T) {
	_, idx := newTestFTS(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{
		ftsChunk("c1", "", "keep this"),
		ftsChunk("c2", "", "remove this"),
		ftsChunk("c3", "", "remove this too"),
	}))

	require.NoError(t, idx.Delete(ctx, []string{"c2", "c3"}))

	results, err := idx.Search(ctx, "remove", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "keep", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFTSIndex_UnparseableQueryReturnsEmpty(t *testing.T) {
	// Given: an indexed chunk
	_, idx := newTestFTS(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Chunk{ftsChunk("c1", "", "plain text")}))

	// Then: operator-looking input yields no results, never an error
	for _, q := range []string{`"unbalanced`, "NEAR(", "   ", "the a of"} {
		results, err := idx.Search(ctx, q, 10)
		require.NoError(t, err, "query %q", q)
		assert.Empty(t, results, "query %q", q)
	}
}

func TestQueryTokens(t *testing.T) {
	// Stop words and single characters drop out.
	assert.Equal(t, []string{"sarah", "phone"}, QueryTokens("the Sarah phone"))
	assert.Equal(t, []string{"budget", "2026"}, QueryTokens("budget, 2026!"))

	// All-stop-word queries fall back to the raw tokens.
	assert.NotEmpty(t, QueryTokens("the and of"))

	assert.Empty(t, QueryTokens("  "))
}

func TestBuildMatchQuery(t *testing.T) {
	assert.Equal(t, `"sarah" OR "phone"`, buildMatchQuery([]string{"sarah", "phone"}))
	assert.Equal(t, `"a""b"`, buildMatchQuery([]string{`a"b`}))
}
