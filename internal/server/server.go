// Package server implements the canopy remote protocol over HTTP: the
// file, folder, lock, and manifest endpoints the HTTP provider talks to.
// State lives in process memory, which makes it the development and test
// peer of provider.HTTPProvider rather than a production backend.
package server

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/canopyhq/canopy/pkg/provider"
)

// Options configures a [Server].
type Options struct {
	// Token, when non-empty, requires "Authorization: Bearer <token>" on
	// every request.
	Token string
	// Logger, nil means log.Default().
	Logger *log.Logger
}

// Server holds the in-memory remote state behind the HTTP handlers.
type Server struct {
	token  string
	logger *log.Logger

	mu        sync.Mutex
	files     map[string]*storedFile
	trash     map[string]*storedFile
	folders   map[string]string // name → id
	locks     map[string]provider.Lock
	manifests map[string][]byte
}

type storedFile struct {
	meta    provider.File
	content []byte
}

// New creates an empty server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		token:     opts.Token,
		logger:    logger,
		files:     make(map[string]*storedFile),
		trash:     make(map[string]*storedFile),
		folders:   make(map[string]string),
		locks:     make(map[string]provider.Lock),
		manifests: make(map[string][]byte),
	}
}

// Handler returns the chi router serving the remote protocol.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.requireAuth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/folders/{id}/files", s.handleListFiles)
		r.Post("/folders/{id}/files", s.handleCreateFile)
		r.Post("/folders", s.handleCreateFolder)

		r.Get("/files/{id}", s.handleGetFile)
		r.Put("/files/{id}", s.handleUpdateFile)
		r.Delete("/files/{id}", s.handleTrashFile)

		r.Put("/vaults/{id}/lock", s.handleAcquireLock)
		r.Delete("/vaults/{id}/lock", s.handleReleaseLock)
		r.Get("/vaults/{id}/manifest", s.handleGetManifest)
		r.Put("/vaults/{id}/manifest", s.handlePutManifest)
	})

	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("remote listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got != s.token {
				writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// File handlers
// =============================================================================

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	folderID := chi.URLParam(r, "id")

	s.mu.Lock()
	var files []provider.File
	for _, f := range s.files {
		if f.meta.FolderID == folderID {
			files = append(files, f.meta)
		}
	}
	s.mu.Unlock()

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	writeJSON(w, http.StatusOK, provider.ListFilesResponse{Files: files})
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	folderID := chi.URLParam(r, "id")

	var req provider.CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "file name required")
		return
	}

	f := &storedFile{
		meta: provider.File{
			ID:       uuid.NewString(),
			FolderID: folderID,
			Name:     req.Name,
			Size:     int64(len(req.Content)),
			Modified: time.Now().UTC(),
		},
		content: append([]byte(nil), req.Content...),
	}

	s.mu.Lock()
	s.files[f.meta.ID] = f
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, provider.FilePayload{File: f.meta})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	f, ok := s.files[id]
	var payload provider.FilePayload
	if ok {
		payload = provider.FilePayload{File: f.meta, Content: append([]byte(nil), f.content...)}
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "file "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req provider.UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	f, ok := s.files[id]
	var meta provider.File
	if ok {
		f.content = append([]byte(nil), req.Content...)
		f.meta.Size = int64(len(req.Content))
		f.meta.Modified = time.Now().UTC()
		meta = f.meta
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "file "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, provider.FilePayload{File: meta})
}

func (s *Server) handleTrashFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	f, ok := s.files[id]
	if ok {
		delete(s.files, id)
		s.trash[id] = f
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "file "+id+" not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req provider.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "folder name required")
		return
	}

	s.mu.Lock()
	id, ok := s.folders[req.Name]
	if !ok {
		id = uuid.NewString()
		s.folders[req.Name] = id
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, provider.FolderResponse{ID: id})
}

// =============================================================================
// Lock and manifest handlers
// =============================================================================

func (s *Server) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "id")

	var req provider.Lock
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "lock owner required")
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	held, ok := s.locks[vaultID]
	if ok && held.Owner != req.Owner && !held.Stale(now) {
		s.mu.Unlock()
		writeError(w, http.StatusLocked, "vault "+vaultID+" locked by "+held.Owner)
		return
	}
	s.locks[vaultID] = provider.Lock{Owner: req.Owner, AcquiredAt: now}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "id")
	owner := r.URL.Query().Get("owner")

	s.mu.Lock()
	if held, ok := s.locks[vaultID]; ok && held.Owner == owner {
		delete(s.locks, vaultID)
	}
	s.mu.Unlock()

	// Releasing an absent or foreign lock is a no-op, matching the
	// provider contract.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "id")

	s.mu.Lock()
	data, ok := s.manifests[vaultID]
	if ok {
		data = append([]byte(nil), data...)
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "vault "+vaultID+" has no manifest")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handlePutManifest(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "id")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read manifest body")
		return
	}

	s.mu.Lock()
	s.manifests[vaultID] = data
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Response helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing left to do but note it.
		log.Default().Debug("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, provider.ErrorResponse{Error: msg})
}

// Locked reports whether a vault holds a lock marker. Test helper.
func (s *Server) Locked(vaultID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locks[vaultID]
	return ok
}

// FileCount returns the number of live files. Test helper.
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
