package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS source_files (
	path            TEXT PRIMARY KEY,
	content_hash    TEXT NOT NULL,
	modified_at     INTEGER NOT NULL,
	size_bytes      INTEGER NOT NULL,
	last_indexed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	file_path  TEXT NOT NULL REFERENCES source_files(path) ON DELETE CASCADE,
	heading    TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	end_line   INTEGER NOT NULL,
	text       TEXT NOT NULL,
	text_hash  TEXT NOT NULL,
	vector     BLOB,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_vector_pending ON chunks(file_path) WHERE vector IS NULL;

CREATE TABLE IF NOT EXISTS embedding_cache (
	text_hash      TEXT NOT NULL,
	provider_model TEXT NOT NULL,
	vector         BLOB NOT NULL,
	created_at     INTEGER NOT NULL,
	PRIMARY KEY (text_hash, provider_model)
);

CREATE TABLE IF NOT EXISTS index_meta (
	id               INTEGER PRIMARY KEY CHECK (id = 1),
	provider_id      TEXT NOT NULL,
	model_id         TEXT NOT NULL,
	dimensions       INTEGER NOT NULL,
	last_full_sync_at INTEGER NOT NULL
);
`

// Store wraps the SQLite database holding all derived index state.
// A single connection serializes writes; WAL keeps readers unblocked.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (or creates) the index database at path. A database that
// fails the integrity check is deleted and recreated, since everything
// in it can be re-derived from the vault.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeVaultIO, err, "create index directory")
	}

	db, err := openAndVerify(path)
	if err != nil {
		logger.Warn("index database failed verification, recreating",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if rmErr := removeDatabase(path); rmErr != nil {
			return nil, vxerrors.Wrapf(vxerrors.ErrCodeIndexCorrupt, rmErr, "remove corrupt index")
		}
		db, err = openAndVerify(path)
		if err != nil {
			return nil, vxerrors.Wrapf(vxerrors.ErrCodeIndexCorrupt, err, "recreate index database")
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeIndexCorrupt, err, "apply index schema")
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

func openAndVerify(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// modernc ignores DSN pragma parameters, so set them explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	// Single writer connection avoids SQLITE_BUSY under concurrent sync.
	db.SetMaxOpenConns(1)

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		db.Close()
		return nil, err
	}
	if result != "ok" {
		db.Close()
		return nil, fmt.Errorf("integrity check: %s", result)
	}
	return db, nil
}

func removeDatabase(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for the FTS5 lexical index, which
// shares this database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Healthy reports whether the database still answers queries.
func (s *Store) Healthy(ctx context.Context) bool {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
}

// ReplaceFile records a file's fingerprint and replaces all of its
// chunks in one transaction. Either the whole file is indexed at the
// new state or nothing changes.
func (s *Store) ReplaceFile(ctx context.Context, file *SourceFile, chunks []*Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "begin index transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO source_files (path, content_hash, modified_at, size_bytes, last_indexed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			modified_at = excluded.modified_at,
			size_bytes = excluded.size_bytes,
			last_indexed_at = excluded.last_indexed_at`,
		file.Path, file.ContentHash, file.ModifiedAt.Unix(), file.SizeBytes, file.LastIndexedAt.Unix(),
	); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "upsert source file")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", file.Path); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "delete old chunks")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, file_path, heading, start_line, end_line, text, text_hash, vector, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "prepare chunk insert")
	}
	defer stmt.Close()

	for _, c := range chunks {
		var vec interface{}
		if c.Vector != nil {
			vec = encodeVector(c.Vector)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.FilePath, c.Heading, c.StartLine, c.EndLine,
			c.Text, c.TextHash, vec, c.CreatedAt.Unix(),
		); err != nil {
			return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "insert chunk %s", c.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "commit file replace")
	}
	return nil
}

// DeleteFile removes a file and its chunks in one transaction. Chunks
// are deleted explicitly rather than trusting the foreign-key cascade,
// which depends on a per-connection pragma. Returns the ids of the
// removed chunks so callers can purge secondary indexes.
func (s *Store) DeleteFile(ctx context.Context, path string) ([]string, error) {
	ids, err := s.ChunkIDsForFile(ctx, path)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "begin file delete")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", path); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "delete chunks")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM source_files WHERE path = ?", path); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "delete source file")
	}
	if err := tx.Commit(); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "commit file delete")
	}
	return ids, nil
}

// GetFile returns a file's stored fingerprint, nil if unknown.
func (s *Store) GetFile(ctx context.Context, path string) (*SourceFile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, content_hash, modified_at, size_bytes, last_indexed_at
		 FROM source_files WHERE path = ?`, path)

	var f SourceFile
	var modified, indexed int64
	if err := row.Scan(&f.Path, &f.ContentHash, &modified, &f.SizeBytes, &indexed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query source file")
	}
	f.ModifiedAt = time.Unix(modified, 0).UTC()
	f.LastIndexedAt = time.Unix(indexed, 0).UTC()
	return &f, nil
}

// ListFiles returns all indexed files with chunk counts, sorted by path.
func (s *Store) ListFiles(ctx context.Context) ([]*FileStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.path, f.content_hash, f.modified_at, f.size_bytes, COUNT(c.id)
		 FROM source_files f
		 LEFT JOIN chunks c ON c.file_path = f.path
		 GROUP BY f.path
		 ORDER BY f.path`)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "list indexed files")
	}
	defer rows.Close()

	var out []*FileStat
	for rows.Next() {
		var fs FileStat
		var modified int64
		if err := rows.Scan(&fs.Path, &fs.Hash, &modified, &fs.SizeBytes, &fs.ChunkCount); err != nil {
			return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "scan file row")
		}
		fs.ModifiedAt = time.Unix(modified, 0).UTC()
		out = append(out, &fs)
	}
	return out, rows.Err()
}

// AllFileHashes returns path -> content hash for every indexed file,
// used by sync to diff against the vault.
func (s *Store) AllFileHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, content_hash FROM source_files")
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query file hashes")
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "scan hash row")
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// ChunkIDsForFile returns the ids of all chunks belonging to a file.
func (s *Store) ChunkIDsForFile(ctx context.Context, path string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks WHERE file_path = ?", path)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query chunk ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "scan chunk id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetChunks loads chunks by id, preserving the requested order.
// Unknown ids are skipped.
func (s *Store) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, heading, start_line, end_line, text, text_hash, vector, created_at
		 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query chunks")
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// AllChunks streams every stored chunk, used to rebuild in-memory
// indexes on startup.
func (s *Store) AllChunks(ctx context.Context) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, heading, start_line, end_line, text, text_hash, vector, created_at
		 FROM chunks`)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query all chunks")
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VectorPending returns up to limit chunks that still need vectors.
func (s *Store) VectorPending(ctx context.Context, limit int) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, heading, start_line, end_line, text, text_hash, vector, created_at
		 FROM chunks WHERE vector IS NULL LIMIT ?`, limit)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query pending chunks")
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChunkVectors stores vectors for the given chunks in one
// transaction.
func (s *Store) SetChunkVectors(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "begin vector update")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE chunks SET vector = ? WHERE id = ?")
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "prepare vector update")
	}
	defer stmt.Close()

	for id, vec := range vectors {
		if _, err := stmt.ExecContext(ctx, encodeVector(vec), id); err != nil {
			return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "update vector for %s", id)
		}
	}
	return tx.Commit()
}

// ResetVectors clears every stored chunk vector. Called when the
// provider or model changes dimensionality; chunks become
// vector-pending and are re-embedded by the recovery pass.
func (s *Store) ResetVectors(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE chunks SET vector = NULL"); err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "reset chunk vectors")
	}
	return nil
}

// CacheGet looks up a cached embedding by text hash and provider/model
// key. Returns nil when absent.
func (s *Store) CacheGet(ctx context.Context, textHash, providerModel string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT vector FROM embedding_cache WHERE text_hash = ? AND provider_model = ?",
		textHash, providerModel).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query embedding cache")
	}
	return decodeVector(blob), nil
}

// CachePut stores an embedding in the persistent cache.
func (s *Store) CachePut(ctx context.Context, textHash, providerModel string, vector []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (text_hash, provider_model, vector, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(text_hash, provider_model) DO UPDATE SET vector = excluded.vector`,
		textHash, providerModel, encodeVector(vector), time.Now().Unix())
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "store cached embedding")
	}
	return nil
}

// GetMeta returns the index metadata singleton, nil if never written.
func (s *Store) GetMeta(ctx context.Context) (*Meta, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT provider_id, model_id, dimensions, last_full_sync_at FROM index_meta WHERE id = 1")

	var m Meta
	var lastSync int64
	if err := row.Scan(&m.ProviderID, &m.ModelID, &m.Dimensions, &lastSync); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query index meta")
	}
	m.LastFullSyncAt = time.Unix(lastSync, 0).UTC()
	return &m, nil
}

// SetMeta writes the index metadata singleton.
func (s *Store) SetMeta(ctx context.Context, m *Meta) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_meta (id, provider_id, model_id, dimensions, last_full_sync_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			provider_id = excluded.provider_id,
			model_id = excluded.model_id,
			dimensions = excluded.dimensions,
			last_full_sync_at = excluded.last_full_sync_at`,
		m.ProviderID, m.ModelID, m.Dimensions, m.LastFullSyncAt.Unix())
	if err != nil {
		return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "store index meta")
	}
	return nil
}

// Counts returns index volume statistics.
func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM source_files),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM chunks WHERE vector IS NOT NULL)`).
		Scan(&c.Files, &c.Chunks, &c.WithVector)
	if err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "query index counts")
	}
	c.VectorPending = c.Chunks - c.WithVector
	return &c, nil
}

// Reset drops all derived state, leaving an empty schema. Used by
// rebuild; the embedding cache survives so unchanged text does not
// re-embed.
func (s *Store) Reset(ctx context.Context) error {
	for _, stmt := range []string{
		"DELETE FROM chunks",
		"DELETE FROM source_files",
		"DELETE FROM index_meta",
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "reset index")
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var blob []byte
	var created int64
	if err := row.Scan(&c.ID, &c.FilePath, &c.Heading, &c.StartLine, &c.EndLine,
		&c.Text, &c.TextHash, &blob, &created); err != nil {
		return nil, vxerrors.Wrapf(vxerrors.ErrCodeInternal, err, "scan chunk row")
	}
	if blob != nil {
		c.Vector = decodeVector(blob)
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return &c, nil
}

// encodeVector serializes a vector as little-endian float32.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 vector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
