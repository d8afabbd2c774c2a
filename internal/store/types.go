// Package store is the persistence layer for all derived index state:
// file fingerprints, chunks, the full-text index, the vector index, and
// the embedding cache. Everything here can be deleted and re-derived
// from the vault.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SourceFile is the indexed fingerprint of a note. Its ContentHash
// always reflects the bytes last chunked; per-file transactions ensure
// it never describes a partially processed state.
type SourceFile struct {
	Path          string // relative to the vault root, unique
	ContentHash   string
	ModifiedAt    time.Time
	SizeBytes     int64
	LastIndexedAt time.Time
}

// Chunk is a stored retrieval unit. All chunks of a file are replaced
// as one unit whenever the file's content hash changes.
type Chunk struct {
	ID        string
	FilePath  string
	Heading   string // nearest heading above the chunk, empty if none
	StartLine int    // 1-based inclusive
	EndLine   int
	Text      string
	TextHash  string
	Vector    []float32 // nil while vector-pending
	CreatedAt time.Time
}

// Meta is the process-wide singleton describing the vector index.
// Dimensionality is fixed per Meta; a provider or model switch with a
// different dimensionality resets stored vectors.
type Meta struct {
	ProviderID     string    `json:"providerId"`
	ModelID        string    `json:"modelId"`
	Dimensions     int       `json:"dimensions"`
	LastFullSyncAt time.Time `json:"lastFullSyncAt"`
}

// FileStat is a per-file summary for the admin files listing.
type FileStat struct {
	Path       string
	Hash       string
	ModifiedAt time.Time
	SizeBytes  int64
	ChunkCount int
}

// Counts summarizes index volume for status reporting.
type Counts struct {
	Files         int
	Chunks        int
	WithVector    int
	VectorPending int
}

// LexicalResult is one hit from the lexical index.
type LexicalResult struct {
	ChunkID      string
	Score        float64 // BM25-style, higher is better
	MatchedTerms []string
}

// VectorResult is one hit from the vector index.
type VectorResult struct {
	ChunkID string
	Score   float32 // cosine similarity mapped to 0-1
}

// LexicalIndex ranks chunk text with BM25-style scoring. Two backends
// exist: SQLite FTS5 sharing the index database (default) and an
// in-memory Bleve index rebuilt on open.
type LexicalIndex interface {
	// Index adds or replaces chunks.
	Index(ctx context.Context, chunks []*Chunk) error

	// Delete removes chunks by ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// Search returns up to limit chunks ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Close releases resources.
	Close() error
}

// HashText returns the content hash used for change detection and the
// embedding cache key.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives a stable chunk identifier from its file, ordinal in
// the file's chunk sequence, and content. The ordinal, not the start
// line, keeps ids unique: sentence-split chunks of one oversized
// paragraph share a start line and can even share text.
func ChunkID(filePath string, ordinal int, textHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", filePath, ordinal, textHash)))
	return hex.EncodeToString(sum[:])[:16]
}

// CacheModelKey builds the embedding cache key component identifying a
// provider/model pair.
func CacheModelKey(providerID, modelID string) string {
	return providerID + "/" + modelID
}
