package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultidx/vaultidx/internal/chunk"
	"github.com/vaultidx/vaultidx/internal/embed"
	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/store"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// DefaultRecoverBatch is how many vector-pending chunks one recovery
// round embeds.
const DefaultRecoverBatch = 32

// Stats summarizes one sync run.
type Stats struct {
	Indexed   int           `json:"indexed"`
	Skipped   int           `json:"skipped"`
	Deleted   int           `json:"deleted"`
	Failed    int           `json:"failed"`
	Pending   int           `json:"pending"`
	Chunks    int           `json:"chunks"`
	Embedded  int           `json:"embedded"`
	CacheHits int           `json:"cacheHits"`
	Duration  time.Duration `json:"duration"`
}

// Syncer drives all index mutations. One file at a time: each file is
// read, hashed, chunked, embedded when possible, and committed as a
// unit, so a crash never leaves a file half-indexed.
type Syncer struct {
	vault    *vault.Vault
	store    *store.Store
	lexical  store.LexicalIndex
	vectors  *store.VectorIndex
	registry *embed.Registry
	opts     chunk.Options
	logger   *slog.Logger

	// mu serializes sync operations; watcher batches, full syncs, and
	// rebuilds must not interleave.
	mu sync.Mutex
}

// New creates a syncer over the given vault and indexes.
func New(v *vault.Vault, s *store.Store, lexical store.LexicalIndex,
	vectors *store.VectorIndex, registry *embed.Registry,
	opts chunk.Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		vault:    v,
		store:    s,
		lexical:  lexical,
		vectors:  vectors,
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// FullSync reconciles the whole vault against the index: new and
// changed files are re-indexed, files gone from the vault are removed.
func (s *Syncer) FullSync(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullSyncLocked(ctx)
}

func (s *Syncer) fullSyncLocked(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	if err := s.ensureMeta(ctx); err != nil {
		return nil, err
	}

	notes, err := s.vault.List()
	if err != nil {
		return nil, err
	}
	indexed, err := s.store.AllFileHashes(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(notes))
	for _, note := range notes {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		seen[note.Path] = struct{}{}

		changed, err := s.indexFile(ctx, note.Path, stats)
		if err != nil {
			// One broken file must not abort the sync.
			s.logger.Warn("failed to index note",
				slog.String("path", note.Path),
				slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		if changed {
			stats.Indexed++
		} else {
			stats.Skipped++
		}
	}

	for path := range indexed {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := s.removeFile(ctx, path); err != nil {
			s.logger.Warn("failed to remove deleted note from index",
				slog.String("path", path),
				slog.String("error", err.Error()))
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	if err := s.recordFullSync(ctx); err != nil {
		return nil, err
	}

	counts, err := s.store.Counts(ctx)
	if err == nil {
		stats.Pending = counts.VectorPending
	}
	stats.Duration = time.Since(start)

	s.logger.Info("full sync complete",
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("deleted", stats.Deleted),
		slog.Int("failed", stats.Failed),
		slog.Int("embedded", stats.Embedded),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("vector_pending", stats.Pending),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// Rebuild discards all derived state and re-indexes the vault from
// scratch. The embedding cache survives, so unchanged text is not
// re-embedded.
func (s *Syncer) Rebuild(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, err := s.store.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := s.lexical.Delete(ctx, ids); err != nil {
		return nil, err
	}
	s.vectors.Delete(ctx, ids)

	if err := s.store.Reset(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("index reset, rebuilding", slog.Int("dropped_chunks", len(ids)))

	return s.fullSyncLocked(ctx)
}

// Apply processes one debounced event batch.
func (s *Syncer) Apply(ctx context.Context, events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		var err error
		switch ev.Op {
		case OpDelete:
			err = s.removeFile(ctx, ev.Path)
		default:
			_, err = s.indexFile(ctx, ev.Path, nil)
		}
		if err != nil {
			s.logger.Warn("failed to apply vault event",
				slog.String("path", ev.Path),
				slog.String("op", ev.Op.String()),
				slog.String("error", err.Error()))
		}
	}
}

// indexFile re-indexes one note. Returns false when the stored content
// hash already matches, meaning nothing was done. Counters accumulate
// into stats when one is given.
func (s *Syncer) indexFile(ctx context.Context, relPath string, stats *Stats) (bool, error) {
	content, err := s.vault.Read(relPath)
	if err != nil {
		return false, err
	}
	hash := store.HashText(content)

	existing, err := s.store.GetFile(ctx, relPath)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.ContentHash == hash {
		return false, nil
	}

	info, err := s.vault.Stat(relPath)
	if err != nil {
		return false, err
	}

	oldIDs, err := s.store.ChunkIDsForFile(ctx, relPath)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	pieces := chunk.Split(content, s.opts)
	chunks := make([]*store.Chunk, len(pieces))
	for i, p := range pieces {
		textHash := store.HashText(p.Text)
		chunks[i] = &store.Chunk{
			ID:        store.ChunkID(relPath, i, textHash),
			FilePath:  relPath,
			Heading:   p.Heading,
			StartLine: p.StartLine,
			EndLine:   p.EndLine,
			Text:      p.Text,
			TextHash:  textHash,
			CreatedAt: now,
		}
	}

	// Embed what we can now; anything that fails stays vector-pending
	// and is picked up by the recovery pass.
	if s.registry.Ready() {
		embedded, hits, err := s.embedChunks(ctx, chunks)
		if err != nil {
			s.logger.Warn("embedding failed, chunks stay vector-pending",
				slog.String("path", relPath),
				slog.String("error", err.Error()))
		}
		if stats != nil {
			stats.Embedded += embedded
			stats.CacheHits += hits
		}
	}
	if stats != nil {
		stats.Chunks += len(chunks)
	}

	file := &store.SourceFile{
		Path:          relPath,
		ContentHash:   hash,
		ModifiedAt:    info.ModifiedAt,
		SizeBytes:     info.SizeBytes,
		LastIndexedAt: now,
	}
	if err := s.store.ReplaceFile(ctx, file, chunks); err != nil {
		return false, err
	}

	// Secondary indexes follow the committed database state.
	newIDs := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		newIDs[c.ID] = struct{}{}
	}
	var removed []string
	for _, id := range oldIDs {
		if _, ok := newIDs[id]; !ok {
			removed = append(removed, id)
		}
	}
	if err := s.lexical.Delete(ctx, removed); err != nil {
		return false, err
	}
	if err := s.lexical.Index(ctx, chunks); err != nil {
		return false, err
	}

	s.vectors.Delete(ctx, removed)
	if err := s.addVectors(ctx, chunks); err != nil {
		return false, err
	}

	s.logger.Debug("note indexed",
		slog.String("path", relPath),
		slog.Int("chunks", len(chunks)))
	return true, nil
}

// removeFile drops a note from every index. Removing an unknown note
// is a no-op.
func (s *Syncer) removeFile(ctx context.Context, relPath string) error {
	ids, err := s.store.DeleteFile(ctx, relPath)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.lexical.Delete(ctx, ids); err != nil {
		return err
	}
	s.vectors.Delete(ctx, ids)

	s.logger.Debug("note removed from index",
		slog.String("path", relPath),
		slog.Int("chunks", len(ids)))
	return nil
}

// embedChunks fills in chunk vectors, consulting the persistent
// embedding cache first so unchanged text never re-embeds. Returns how
// many vectors were computed and how many came from the cache.
func (s *Syncer) embedChunks(ctx context.Context, chunks []*store.Chunk) (int, int, error) {
	provider := s.registry.Active()
	if provider == nil {
		return 0, 0, vxerrors.ProviderUnavailable(s.registry.Intended(), nil)
	}
	modelKey := store.CacheModelKey(provider.ProviderID(), provider.ModelID())

	hits := 0
	var missIdx []int
	var missTexts []string
	for i, c := range chunks {
		cached, err := s.store.CacheGet(ctx, c.TextHash, modelKey)
		if err != nil {
			return 0, hits, err
		}
		if cached != nil {
			c.Vector = cached
			hits++
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, c.Text)
	}
	if len(missTexts) == 0 {
		return 0, hits, nil
	}

	vectors, err := provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return 0, hits, vxerrors.Wrapf(vxerrors.ErrCodeEmbeddingFailed, err, "embed %d chunks", len(missTexts))
	}
	for j, i := range missIdx {
		chunks[i].Vector = vectors[j]
		if err := s.store.CachePut(ctx, chunks[i].TextHash, modelKey, vectors[j]); err != nil {
			return j, hits, err
		}
	}
	return len(missTexts), hits, nil
}

// addVectors pushes embedded chunks into the in-memory vector index.
func (s *Syncer) addVectors(ctx context.Context, chunks []*store.Chunk) error {
	var ids []string
	var vectors [][]float32
	for _, c := range chunks {
		if c.Vector == nil {
			continue
		}
		ids = append(ids, c.ID)
		vectors = append(vectors, c.Vector)
	}
	return s.vectors.Add(ctx, ids, vectors)
}

// RecoverPending embeds chunks left vector-pending by earlier degraded
// runs. It works in batches and stops when the provider degrades or
// nothing is left.
func (s *Syncer) RecoverPending(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultRecoverBatch
	}

	total := 0
	for s.registry.Ready() {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		s.mu.Lock()
		pending, err := s.store.VectorPending(ctx, batchSize)
		if err != nil {
			s.mu.Unlock()
			return total, err
		}
		if len(pending) == 0 {
			s.mu.Unlock()
			break
		}

		if _, _, err := s.embedChunks(ctx, pending); err != nil {
			s.mu.Unlock()
			return total, err
		}

		vectors := make(map[string][]float32, len(pending))
		for _, c := range pending {
			if c.Vector != nil {
				vectors[c.ID] = c.Vector
			}
		}
		if err := s.store.SetChunkVectors(ctx, vectors); err != nil {
			s.mu.Unlock()
			return total, err
		}
		if err := s.addVectors(ctx, pending); err != nil {
			s.mu.Unlock()
			return total, err
		}
		s.mu.Unlock()

		total += len(vectors)
		s.logger.Info("recovered pending vectors", slog.Int("count", len(vectors)))
	}
	return total, nil
}

// ReconcileProvider applies a provider switch to stored state. Stored
// vectors from the previous provider are cleared; a following recovery
// pass re-embeds them.
func (s *Syncer) ReconcileProvider(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureMeta(ctx)
}

// ensureMeta reconciles the stored index metadata with the active
// provider. A provider or model switch invalidates stored vectors;
// they are cleared and re-embedded by recovery rather than mixed.
func (s *Syncer) ensureMeta(ctx context.Context) error {
	provider := s.registry.Active()
	if provider == nil {
		return nil
	}

	meta, err := s.store.GetMeta(ctx)
	if err != nil {
		return err
	}
	pid, mid := provider.ProviderID(), provider.ModelID()

	if meta != nil && (meta.ProviderID != pid || meta.ModelID != mid) {
		s.logger.Warn("embedding provider changed, resetting stored vectors",
			slog.String("from", meta.ProviderID+"/"+meta.ModelID),
			slog.String("to", pid+"/"+mid))
		if err := s.store.ResetVectors(ctx); err != nil {
			return err
		}
		s.vectors.Reset(provider.Dimensions())
		meta = nil
	}

	if meta == nil {
		return s.store.SetMeta(ctx, &store.Meta{
			ProviderID: pid,
			ModelID:    mid,
			Dimensions: provider.Dimensions(),
		})
	}
	return nil
}

// recordFullSync stamps the metadata singleton with the sync time and
// the provider's now-known dimensionality.
func (s *Syncer) recordFullSync(ctx context.Context) error {
	provider := s.registry.Active()
	if provider == nil {
		return nil
	}
	return s.store.SetMeta(ctx, &store.Meta{
		ProviderID:     provider.ProviderID(),
		ModelID:        provider.ModelID(),
		Dimensions:     provider.Dimensions(),
		LastFullSyncAt: time.Now().UTC(),
	})
}
