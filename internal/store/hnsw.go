package store

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/coder/hnsw"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// VectorIndex is an in-memory HNSW graph over chunk vectors with cosine
// similarity. It is never persisted; it is rebuilt from the stored
// chunk vectors on startup, which keeps it trivially consistent with
// the database.
type VectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	// chunk id <-> graph key. Deletion is lazy: the node stays in the
	// graph but loses its mapping and is filtered out of results.
	idToKey map[string]uint64
	keyToID map[uint64]string
	nextKey uint64
}

// NewVectorIndex creates an empty index. Dimensions may be 0 and will
// be fixed by the first added vector.
func NewVectorIndex(dimensions int) *VectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &VectorIndex{
		graph:      graph,
		dimensions: dimensions,
		idToKey:    make(map[string]uint64),
		keyToID:    make(map[uint64]string),
	}
}

// Dimensions returns the fixed dimensionality, 0 if no vector added.
func (v *VectorIndex) Dimensions() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dimensions
}

// Add inserts or replaces chunk vectors. The first vector fixes the
// index dimensionality; later vectors must match it.
func (v *VectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return vxerrors.New(vxerrors.ErrCodeInvalidInput, "ids and vectors length mismatch", nil)
	}
	if len(ids) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, vec := range vectors {
		if v.dimensions == 0 {
			v.dimensions = len(vec)
		}
		if len(vec) != v.dimensions {
			return vxerrors.New(vxerrors.ErrCodeDimensionMismatch,
				"vector dimensionality does not match index", nil).
				WithDetail("expected", strconv.Itoa(v.dimensions)).
				WithDetail("got", strconv.Itoa(len(vec)))
		}
	}

	for i, id := range ids {
		// Replacing an id orphans the old graph node rather than
		// deleting it; hnsw deletion of the last node breaks the graph.
		if oldKey, ok := v.idToKey[id]; ok {
			delete(v.keyToID, oldKey)
			delete(v.idToKey, id)
		}

		key := v.nextKey
		v.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalize(vec)

		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idToKey[id] = key
		v.keyToID[key] = id
	}
	return nil
}

// Search returns up to k nearest chunks by cosine similarity, scored
// 0-1 where 1 is identical.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return nil, nil
	}
	if len(query) != v.dimensions {
		return nil, vxerrors.New(vxerrors.ErrCodeDimensionMismatch,
			"query vector dimensionality does not match index", nil).
			WithDetail("expected", strconv.Itoa(v.dimensions)).
			WithDetail("got", strconv.Itoa(len(query)))
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalize(q)

	// Over-fetch to compensate for lazily deleted nodes still present
	// in the graph.
	orphans := v.graph.Len() - len(v.idToKey)
	nodes := v.graph.Search(q, k+orphans)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, ok := v.keyToID[node.Key]
		if !ok {
			continue
		}
		distance := v.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ChunkID: id,
			Score:   1.0 - distance/2.0,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete removes chunk vectors by id.
func (v *VectorIndex) Delete(ctx context.Context, ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range ids {
		if key, ok := v.idToKey[id]; ok {
			delete(v.keyToID, key)
			delete(v.idToKey, id)
		}
	}
}

// Reset discards all vectors and fixes a new dimensionality. Used when
// the embedding provider changes.
func (v *VectorIndex) Reset(dimensions int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	v.graph = graph
	v.dimensions = dimensions
	v.idToKey = make(map[string]uint64)
	v.keyToID = make(map[uint64]string)
	v.nextKey = 0
}

// Count returns the number of live vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idToKey)
}

// Contains reports whether a chunk has a vector in the index.
func (v *VectorIndex) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.idToKey[id]
	return ok
}

// LoadVectorIndex builds a vector index from every stored chunk that
// has a vector.
func LoadVectorIndex(ctx context.Context, s *Store, dimensions int) (*VectorIndex, error) {
	idx := NewVectorIndex(dimensions)

	chunks, err := s.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	var vectors [][]float32
	for _, c := range chunks {
		if c.Vector == nil {
			continue
		}
		if dimensions > 0 && len(c.Vector) != dimensions {
			// Stale vector from a previous provider; skip it and let
			// the recovery pass re-embed.
			continue
		}
		ids = append(ids, c.ID)
		vectors = append(vectors, c.Vector)
	}

	if err := idx.Add(ctx, ids, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

