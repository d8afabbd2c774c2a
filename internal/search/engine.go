package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vaultidx/vaultidx/internal/embed"
	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/store"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// Engine runs hybrid searches. The lexical probe always runs; the
// vector probe runs only when the embedding provider is ready, and its
// failure degrades the search to lexical-only instead of failing it.
type Engine struct {
	store    *store.Store
	lexical  store.LexicalIndex
	vectors  *store.VectorIndex
	registry *embed.Registry
	fuser    *fuser
	logger   *slog.Logger

	// Query embeddings are cached per active provider instance; a
	// provider switch invalidates the cache by replacing it.
	mu          sync.Mutex
	cachedInner embed.Provider
	cached      *embed.CachedProvider
}

// NewEngine creates a search engine over the given indexes.
func NewEngine(s *store.Store, lexical store.LexicalIndex, vectors *store.VectorIndex,
	registry *embed.Registry, rrfConstant int, logger *slog.Logger) (*Engine, error) {
	if s == nil || lexical == nil || vectors == nil || registry == nil {
		return nil, vxerrors.New(vxerrors.ErrCodeInternal, "search engine requires store, indexes, and registry", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    s,
		lexical:  lexical,
		vectors:  vectors,
		registry: registry,
		fuser:    newFuser(rrfConstant),
		logger:   logger,
	}, nil
}

// Search runs both probes, fuses, filters, enriches, and groups the
// results by source category in fixed priority order.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, vxerrors.New(vxerrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	opts = opts.withDefaults()
	probeLimit := opts.MaxResults * probeMultiplier
	if len(opts.Sources) > 0 {
		probeLimit = opts.MaxResults * filteredProbeMultiplier
	}

	var (
		lexResults []*store.LexicalResult
		vecResults []*store.VectorResult
		degraded   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexResults, err = e.lexical.Search(gctx, query, probeLimit)
		return err
	})
	g.Go(func() error {
		if !e.registry.Ready() {
			degraded = true
			return nil
		}
		results, vecErr := e.vectorProbe(gctx, query, probeLimit)
		if vecErr != nil {
			// Vector problems degrade the search rather than failing it.
			e.logger.Warn("vector probe failed, continuing lexical-only",
				slog.String("error", vecErr.Error()))
			degraded = true
			return nil
		}
		vecResults = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "lexical search")
	}

	fused := e.fuser.fuse(lexResults, vecResults)

	// The source filter applies before the score threshold and the
	// result cap, so a restricted search sees every candidate in its
	// categories, not the leftovers of a global top-N.
	enriched, err := e.enrich(ctx, fused, opts.Sources)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, opts.MaxResults)
	for _, r := range enriched {
		if r.Score < opts.MinScore {
			break
		}
		results = append(results, r)
		if len(results) == opts.MaxResults {
			break
		}
	}

	mode := ModeHybrid
	if degraded || len(vecResults) == 0 {
		mode = ModeLexical
	}
	var degradedInfo *Degraded
	if degraded {
		reason := e.registry.LastHealth().Message
		if reason == "" {
			reason = "embedding provider unavailable"
		}
		degradedInfo = &Degraded{Provider: e.registry.Intended(), Reason: reason}
	}
	return &Response{
		Query:    query,
		Groups:   groupByCategory(results),
		Total:    len(results),
		Mode:     mode,
		Degraded: degradedInfo,
	}, nil
}

// vectorProbe embeds the query and searches the vector index. Returns
// an error when the provider is not ready or any step fails.
func (e *Engine) vectorProbe(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	if !e.registry.Ready() {
		return nil, vxerrors.ProviderUnavailable(e.registry.Intended(), nil)
	}
	if e.vectors.Count() == 0 {
		return nil, nil
	}

	embedder := e.queryEmbedder()
	if embedder == nil {
		return nil, vxerrors.ProviderUnavailable(e.registry.Intended(), nil)
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.vectors.Search(ctx, vec, limit)
}

// queryEmbedder returns the active provider behind the query cache,
// rebuilding the cache when the provider changed.
func (e *Engine) queryEmbedder() embed.Provider {
	active := e.registry.Active()
	if active == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cachedInner != active {
		e.cachedInner = active
		e.cached = embed.NewCachedProvider(active, 0)
	}
	return e.cached
}

// enrich loads chunk rows for the fused candidates, in fused order,
// dropping any outside the requested source categories.
func (e *Engine) enrich(ctx context.Context, fused []*fusedResult, sources []string) ([]*Result, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	byID := make(map[string]*fusedResult, len(fused))
	for i, r := range fused {
		ids[i] = r.ChunkID
		byID[r.ChunkID] = r
	}

	chunks, err := e.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(chunks))
	for _, c := range chunks {
		cat := vault.CategoryOf(c.FilePath)
		if !matchesSource(cat, sources) {
			continue
		}
		fr := byID[c.ID]
		results = append(results, &Result{
			ChunkID:      c.ID,
			Path:         c.FilePath,
			Category:     cat,
			Heading:      c.Heading,
			StartLine:    c.StartLine,
			EndLine:      c.EndLine,
			Snippet:      makeSnippet(c.Text, fr.MatchedTerms),
			Score:        fr.Score,
			MatchedTerms: fr.MatchedTerms,
			InBothProbes: fr.InBoth,
		})
	}
	return results, nil
}

func matchesSource(cat vault.Category, sources []string) bool {
	if len(sources) == 0 {
		return true
	}
	for _, s := range sources {
		if string(cat) == s {
			return true
		}
	}
	return false
}

// groupByCategory splits results into groups following the fixed
// category priority. Order inside a group is the fused rank order;
// groups are never re-sorted against each other by score.
func groupByCategory(results []*Result) []*Group {
	buckets := make(map[vault.Category][]*Result)
	for _, r := range results {
		buckets[r.Category] = append(buckets[r.Category], r)
	}

	groups := make([]*Group, 0, len(buckets))
	for _, cat := range vault.CategoryOrder {
		if rs, ok := buckets[cat]; ok {
			groups = append(groups, &Group{Category: cat, Results: rs})
		}
	}
	return groups
}
