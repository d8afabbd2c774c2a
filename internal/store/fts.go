package store

import (
	"context"
	"database/sql"
	"strings"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	heading,
	body,
	tokenize = 'unicode61 remove_diacritics 2'
);
`

// FTSIndex is the default lexical backend: an FTS5 virtual table in the
// index database, scored with SQLite's built-in bm25().
type FTSIndex struct {
	db *sql.DB
}

var _ LexicalIndex = (*FTSIndex)(nil)

// NewFTSIndex creates the FTS5 table if needed and returns the index.
func NewFTSIndex(db *sql.DB) (*FTSIndex, error) {
	if _, err := db.Exec(ftsSchema); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeIndexCorrupt, err, "create fts5 table")
	}
	return &FTSIndex{db: db}, nil
}

// Index replaces the given chunks in the full-text table. FTS5 has no
// upsert, so each chunk is deleted then inserted inside one transaction.
func (f *FTSIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "begin fts transaction")
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?")
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "prepare fts delete")
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks_fts (chunk_id, heading, body) VALUES (?, ?, ?)")
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "prepare fts insert")
	}
	defer ins.Close()

	for _, c := range chunks {
		if _, err := del.ExecContext(ctx, c.ID); err != nil {
			return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "fts delete %s", c.ID)
		}
		if _, err := ins.ExecContext(ctx, c.ID, c.Heading, c.Text); err != nil {
			return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "fts insert %s", c.ID)
		}
	}
	return tx.Commit()
}

// Delete removes chunks from the full-text table.
func (f *FTSIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(chunkIDs)-1) + "?"
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}
	if _, err := f.db.ExecContext(ctx,
		"DELETE FROM chunks_fts WHERE chunk_id IN ("+placeholders+")", args...); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "fts batch delete")
	}
	return nil
}

// Search ranks chunks by bm25. Headings are weighted above body text.
// A query with no usable tokens, or one FTS5 cannot parse, returns no
// results rather than an error.
func (f *FTSIndex) Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error) {
	tokens := QueryTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	match := buildMatchQuery(tokens)

	rows, err := f.db.QueryContext(ctx,
		`SELECT chunk_id, bm25(chunks_fts, 0.0, 2.0, 1.0) AS score
		 FROM chunks_fts
		 WHERE chunks_fts MATCH ?
		 ORDER BY score
		 LIMIT ?`, match, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") {
			return nil, nil
		}
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "fts search")
	}
	defer rows.Close()

	var results []*LexicalResult
	for rows.Next() {
		var r LexicalResult
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "scan fts row")
		}
		// bm25() returns more-negative for better matches; flip the sign
		// so higher means more relevant.
		r.Score = -r.Score
		r.MatchedTerms = tokens
		results = append(results, &r)
	}
	return results, rows.Err()
}

// Close is a no-op; the store owns the shared database handle.
func (f *FTSIndex) Close() error {
	return nil
}

// buildMatchQuery joins quoted tokens with OR so a note matching any
// term can surface; bm25 still rewards matching more of them.
func buildMatchQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
