package store

import (
	"context"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// BleveIndex is the alternate lexical backend: an in-memory Bleve index
// rebuilt from stored chunks on startup. It avoids FTS5 entirely, at
// the cost of memory proportional to the vault.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

var _ LexicalIndex = (*BleveIndex)(nil)

type bleveChunk struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex() (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "create bleve index")
	}
	return &BleveIndex{index: idx}, nil
}

// Index adds or replaces chunks in one batch.
func (b *BleveIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return vxerrors.New(vxerrors.ErrCodeInternal, "bleve index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunk{Heading: c.Heading, Body: c.Text}
		if err := batch.Index(c.ID, doc); err != nil {
			return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "bleve index %s", c.ID)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "bleve batch")
	}
	return nil
}

// Delete removes chunks in one batch.
func (b *BleveIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return vxerrors.New(vxerrors.ErrCodeInternal, "bleve index is closed", nil)
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "bleve delete batch")
	}
	return nil
}

// Search ranks chunks across heading and body, heading boosted.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, vxerrors.New(vxerrors.ErrCodeInternal, "bleve index is closed", nil)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	headingQuery := bleve.NewMatchQuery(query)
	headingQuery.SetField("heading")
	headingQuery.SetBoost(2.0)

	bodyQuery := bleve.NewMatchQuery(query)
	bodyQuery.SetField("body")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(headingQuery, bodyQuery))
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "bleve search")
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: matchedTerms(hit),
		})
	}
	return results, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func matchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for _, locations := range hit.Locations {
		for term := range locations {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}
