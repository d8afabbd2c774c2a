// Package search implements hybrid retrieval over indexed notes:
// lexical and vector probes run in parallel and are fused with
// Reciprocal Rank Fusion.
package search

import (
	"github.com/vaultidx/vaultidx/internal/vault"
)

// Defaults applied when options are zero.
const (
	DefaultMaxResults  = 15
	DefaultMinScore    = 0.25
	DefaultRRFConstant = 60

	// probeMultiplier over-fetches each probe so fusion has enough
	// candidates to work with before the final cut.
	probeMultiplier = 3

	// filteredProbeMultiplier replaces probeMultiplier when a source
	// filter is set: the filter discards ranked candidates, so probes
	// must reach much deeper to keep small categories retrievable.
	filteredProbeMultiplier = 20

	// snippetMaxChars bounds result snippets.
	snippetMaxChars = 240
)

// Options controls a single search.
type Options struct {
	MaxResults int
	MinScore   float64
	Sources    []string // restrict to these source categories, empty for all
}

func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	return o
}

// Result is one scored chunk, enriched for presentation.
type Result struct {
	ChunkID      string         `json:"chunkId"`
	Path         string         `json:"path"`
	Category     vault.Category `json:"category"`
	Heading      string         `json:"heading,omitempty"`
	StartLine    int            `json:"startLine"`
	EndLine      int            `json:"endLine"`
	Snippet      string         `json:"snippet"`
	Score        float64        `json:"score"`
	MatchedTerms []string       `json:"matchedTerms,omitempty"`
	InBothProbes bool           `json:"inBothProbes"`
}

// Group holds the results for one source category. Groups appear in
// fixed category priority order; results inside a group keep their
// fused rank order.
type Group struct {
	Category vault.Category `json:"category"`
	Results  []*Result      `json:"results"`
}

// Degraded explains why a response is lexical-only.
type Degraded struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// Response is the full outcome of a search.
type Response struct {
	Query    string    `json:"query"`
	Groups   []*Group  `json:"groups"`
	Total    int       `json:"total"`
	Mode     string    `json:"mode"` // "hybrid" or "lexical"
	Degraded *Degraded `json:"degraded,omitempty"`
}

// Modes reported in Response.Mode.
const (
	ModeHybrid  = "hybrid"
	ModeLexical = "lexical"
)
