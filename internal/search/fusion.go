package search

import (
	"sort"

	"github.com/vaultidx/vaultidx/internal/store"
)

// fusedResult is a chunk's combined standing across both probes.
type fusedResult struct {
	ChunkID      string
	Score        float64 // RRF score, normalized to 0-1 after fusion
	LexRank      int     // 1-indexed, 0 if absent
	LexScore     float64
	VecRank      int // 1-indexed, 0 if absent
	VecScore     float64
	InBoth       bool
	MatchedTerms []string
}

// fuser applies Reciprocal Rank Fusion: each probe contributes
// 1/(k+rank) for every chunk it returned, ranks 1-indexed. Chunks
// absent from a probe simply get no contribution from it.
type fuser struct {
	k int
}

func newFuser(k int) *fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &fuser{k: k}
}

// fuse combines the probe lists, sorts deterministically, and
// normalizes scores so the best result is 1.0. Normalization makes the
// minimum-score threshold meaningful regardless of list sizes.
func (f *fuser) fuse(lex []*store.LexicalResult, vec []*store.VectorResult) []*fusedResult {
	if len(lex) == 0 && len(vec) == 0 {
		return nil
	}

	merged := make(map[string]*fusedResult, len(lex)+len(vec))
	get := func(id string) *fusedResult {
		if r, ok := merged[id]; ok {
			return r
		}
		r := &fusedResult{ChunkID: id}
		merged[id] = r
		return r
	}

	for rank, r := range lex {
		fr := get(r.ChunkID)
		fr.LexRank = rank + 1
		fr.LexScore = r.Score
		fr.MatchedTerms = r.MatchedTerms
		fr.Score += 1.0 / float64(f.k+rank+1)
	}
	for rank, r := range vec {
		fr := get(r.ChunkID)
		fr.VecRank = rank + 1
		fr.VecScore = float64(r.Score)
		fr.Score += 1.0 / float64(f.k+rank+1)
		if fr.LexRank > 0 {
			fr.InBoth = true
		}
	}

	results := make([]*fusedResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return lessFused(results[i], results[j])
	})

	if max := results[0].Score; max > 0 {
		for _, r := range results {
			r.Score /= max
		}
	}
	return results
}

// lessFused orders by score, then both-probe presence, then lexical
// score, then chunk id for determinism.
func lessFused(a, b *fusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.InBoth != b.InBoth {
		return a.InBoth
	}
	if a.LexScore != b.LexScore {
		return a.LexScore > b.LexScore
	}
	return a.ChunkID < b.ChunkID
}
