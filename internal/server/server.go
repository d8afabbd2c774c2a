// Package server exposes the admin HTTP surface: status, search,
// file listing, rebuild, and provider activation. It binds to
// localhost by default and carries no authentication.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaultidx/vaultidx/internal/config"
	"github.com/vaultidx/vaultidx/internal/embed"
	vxerrors "github.com/vaultidx/vaultidx/internal/errors"
	"github.com/vaultidx/vaultidx/internal/search"
	"github.com/vaultidx/vaultidx/internal/store"
	"github.com/vaultidx/vaultidx/internal/syncer"
	"github.com/vaultidx/vaultidx/internal/vault"
)

// Server is the admin HTTP server.
type Server struct {
	cfg      *config.Config
	vault    *vault.Vault
	store    *store.Store
	engine   *search.Engine
	syncer   *syncer.Syncer
	registry *embed.Registry
	logger   *slog.Logger
	http     *http.Server
}

// New wires the admin server. Call Start to begin serving.
func New(cfg *config.Config, v *vault.Vault, s *store.Store, engine *search.Engine,
	sync *syncer.Syncer, registry *embed.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		cfg:      cfg,
		vault:    v,
		store:    s,
		engine:   engine,
		syncer:   sync,
		registry: registry,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/search", srv.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/files", srv.handleFiles).Methods(http.MethodGet)
	r.HandleFunc("/rebuild", srv.handleRebuild).Methods(http.MethodPost)
	r.HandleFunc("/providers/activate", srv.handleActivateProvider).Methods(http.MethodPost)

	srv.http = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.logRequests(r),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("admin server listening", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)))
	})
}

// statusResponse is the GET /status payload.
type statusResponse struct {
	VaultRoot     string         `json:"vaultRoot"`
	FilesIndexed  int            `json:"filesIndexed"`
	TotalChunks   int            `json:"totalChunks"`
	VectorPending int            `json:"vectorPending"`
	LastSync      *time.Time     `json:"lastSync,omitempty"`
	Provider      providerStatus `json:"provider"`
	DBHealthy     bool           `json:"dbHealthy"`
}

type providerStatus struct {
	ID         string `json:"id"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	State      string `json:"state"`
	Healthy    bool   `json:"healthy"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := s.store.Counts(ctx)
	if err != nil {
		sendError(w, err)
		return
	}
	meta, err := s.store.GetMeta(ctx)
	if err != nil {
		sendError(w, err)
		return
	}
	health := s.registry.LastHealth()

	resp := statusResponse{
		VaultRoot:     s.vault.Root(),
		FilesIndexed:  counts.Files,
		TotalChunks:   counts.Chunks,
		VectorPending: counts.VectorPending,
		DBHealthy:     s.store.Healthy(ctx),
		Provider: providerStatus{
			ID:      s.registry.Intended(),
			State:   string(s.registry.State()),
			Healthy: health.Healthy,
			Message: health.Message,
		},
	}
	if meta != nil {
		resp.Provider.Model = meta.ModelID
		resp.Provider.Dimensions = meta.Dimensions
		if !meta.LastFullSyncAt.IsZero() {
			t := meta.LastFullSyncAt
			resp.LastSync = &t
		}
	}
	sendJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts search.Options
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sendError(w, vxerrors.ValidationError("maxResults must be a positive integer", err))
			return
		}
		opts.MaxResults = n
	}
	if v := q.Get("minScore"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			sendError(w, vxerrors.ValidationError("minScore must be between 0 and 1", err))
			return
		}
		opts.MinScore = f
	}
	for _, src := range strings.Split(q.Get("sources"), ",") {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		if !vault.ValidCategory(src) {
			sendError(w, vxerrors.ValidationError("unknown source: "+src, nil))
			return
		}
		opts.Sources = append(opts.Sources, src)
	}

	resp, err := s.engine.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, resp)
}

// fileEntry is one row of the GET /files payload. Stale means the note
// on disk no longer matches the hash it was indexed under.
type fileEntry struct {
	Path       string    `json:"path"`
	Hash       string    `json:"hash"`
	ModifiedAt time.Time `json:"modifiedAt"`
	SizeBytes  int64     `json:"sizeBytes"`
	ChunkCount int       `json:"chunkCount"`
	Stale      bool      `json:"stale"`
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context())
	if err != nil {
		sendError(w, err)
		return
	}

	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		stale := true
		if content, err := s.vault.Read(f.Path); err == nil {
			stale = store.HashText(content) != f.Hash
		}
		entries = append(entries, fileEntry{
			Path:       f.Path,
			Hash:       f.Hash,
			ModifiedAt: f.ModifiedAt,
			SizeBytes:  f.SizeBytes,
			ChunkCount: f.ChunkCount,
			Stale:      stale,
		})
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"files": entries,
		"total": len(entries),
	})
}

// rebuildResponse is the POST /rebuild payload.
type rebuildResponse struct {
	FilesScanned        int   `json:"filesScanned"`
	FilesChanged        int   `json:"filesChanged"`
	ChunksCreated       int   `json:"chunksCreated"`
	EmbeddingsComputed  int   `json:"embeddingsComputed"`
	EmbeddingsCachedHit int   `json:"embeddingsCachedHit"`
	DurationMs          int64 `json:"durationMs"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := s.syncer.Rebuild(r.Context())
	if err != nil {
		sendError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rebuildResponse{
		FilesScanned:        stats.Indexed + stats.Skipped + stats.Failed,
		FilesChanged:        stats.Indexed,
		ChunksCreated:       stats.Chunks,
		EmbeddingsComputed:  stats.Embedded,
		EmbeddingsCachedHit: stats.CacheHits,
		DurationMs:          stats.Duration.Milliseconds(),
	})
}

// activateRequest is the POST /providers/activate body.
type activateRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleActivateProvider(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, vxerrors.ValidationError("invalid JSON body", err))
		return
	}
	if req.Provider == "" {
		sendError(w, vxerrors.ValidationError("provider is required", nil))
		return
	}

	embedCfg := embed.Config{
		Provider:     req.Provider,
		Model:        s.cfg.Embeddings.Model,
		OllamaHost:   s.cfg.Embeddings.OllamaHost,
		BatchSize:    s.cfg.Embeddings.BatchSize,
		EmbedTimeout: s.cfg.Embeddings.EmbedTimeout,
		BatchTimeout: s.cfg.Embeddings.BatchTimeout,
	}
	if req.Model != "" {
		embedCfg.Model = req.Model
	}

	provider, err := embed.NewProvider(embedCfg)
	if err != nil {
		sendError(w, err)
		return
	}

	s.registry.Activate(provider)
	health := s.registry.CheckHealth(r.Context())

	if err := s.syncer.ReconcileProvider(r.Context()); err != nil {
		sendError(w, err)
		return
	}
	if s.registry.Ready() {
		// Re-embed invalidated vectors off the request path.
		go func() {
			if _, err := s.syncer.RecoverPending(context.Background(), syncer.DefaultRecoverBatch); err != nil {
				s.logger.Warn("vector recovery after provider switch failed",
					slog.String("error", err.Error()))
			}
		}()
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider.ProviderID(),
		"model":    provider.ModelID(),
		"state":    string(s.registry.State()),
		"healthy":  health.Healthy,
		"message":  health.Message,
	})
}
