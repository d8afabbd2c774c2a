package store

import (
	"context"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

// Lexical backend names accepted in configuration.
const (
	LexicalBackendFTS5  = "fts5"
	LexicalBackendBleve = "bleve"
)

// NewLexicalIndex creates the configured lexical backend. FTS5 shares
// the store's database and persists across restarts; Bleve is memory
// only and is reloaded from stored chunks here.
func NewLexicalIndex(ctx context.Context, s *Store, backend string) (LexicalIndex, error) {
	switch backend {
	case LexicalBackendFTS5, "":
		return NewFTSIndex(s.DB())
	case LexicalBackendBleve:
		idx, err := NewBleveIndex()
		if err != nil {
			return nil, err
		}
		chunks, err := s.AllChunks(ctx)
		if err != nil {
			idx.Close()
			return nil, err
		}
		if err := idx.Index(ctx, chunks); err != nil {
			idx.Close()
			return nil, err
		}
		return idx, nil
	default:
		return nil, vxerrors.New(vxerrors.ErrCodeConfigInvalid,
			"unknown lexical backend: "+backend, nil).
			WithSuggestion("valid backends are fts5 and bleve")
	}
}
