package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"seminars/internal/config"
	"seminars/internal/history"
	appLog "seminars/internal/log"
	"seminars/internal/metrics"
	"seminars/internal/pipeline"
	"seminars/internal/source"
	"seminars/internal/store"
	"seminars/internal/token"
)

// maxUploadBytes bounds a schedule upload; real exports are a few KB.
const maxUploadBytes = 8 << 20

// HistoryReader lists recent runs.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Server provides the upload hook and read APIs over the pipeline registry.
type Server struct {
	cfg     *config.Config
	reg     *pipeline.Registry
	history HistoryReader
	metrics *metrics.Metrics
	mux     *http.ServeMux

	// Persisted datasets are cached until the next successful run of their
	// pipeline, or for datasetCacheTTL when another process may write them.
	datasetMu    sync.RWMutex
	datasetCache map[string]*datasetCache
}

type datasetCache struct {
	data      []byte
	updatedAt time.Time
}

const datasetCacheTTL = 30 * time.Second

// NewServer constructs a new Server. hist and m may be nil.
func NewServer(cfg *config.Config, reg *pipeline.Registry, hist HistoryReader, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:          cfg,
		reg:          reg,
		history:      hist,
		metrics:      m,
		mux:          http.NewServeMux(),
		datasetCache: make(map[string]*datasetCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Seminars", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on s.cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/datasets/{pipeline}", s.handleDataset)
	s.mux.HandleFunc("GET /api/decode", s.handleDecode)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// uploadResponse is the JSON response shape for /api/upload.
type uploadResponse struct {
	Handled   bool     `json:"handled"`
	Filename  string   `json:"filename"`
	Pipeline  string   `json:"pipeline,omitempty"`
	RunID     string   `json:"run_id,omitempty"`
	Revision  string   `json:"revision,omitempty"`
	Terms     []string `json:"terms,omitempty"`
	Events    int      `json:"events,omitempty"`
	Documents []string `json:"documents,omitempty"`
}

// handleUpload is the upload-completion hook.
//
// POST /api/upload (multipart, field "file")
//   - pipeline: optional; runs the named pipeline regardless of file name
//
// The file name selects the pipeline otherwise. A name no pipeline is bound
// to is answered with 202 and handled=false.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := uuid.NewString()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer f.Close()

	filename := filepath.Base(hdr.Filename)
	appLog.Info("upload received", "upload_id", uploadID, "filename", filename, "bytes", hdr.Size)

	buf, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	rows, err := source.Parse(buf)
	if err != nil {
		appLog.Warn("upload rejected", "upload_id", uploadID, "filename", filename, "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		res     *pipeline.Result
		handled bool
	)
	if name := r.URL.Query().Get("pipeline"); name != "" {
		p, ok := s.reg.Get(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown pipeline %q", name))
			return
		}
		handled = true
		res, err = p.Run(r.Context(), filename, rows)
	} else {
		res, handled, err = s.reg.Dispatch(r.Context(), filename, rows)
	}

	switch {
	case err != nil && pipeline.IsMalformed(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case !handled:
		appLog.Info("upload ignored", "upload_id", uploadID, "filename", filename)
		writeJSON(w, http.StatusAccepted, uploadResponse{Handled: false, Filename: filename})
		return
	}

	s.invalidate(res.Pipeline)
	writeJSON(w, http.StatusOK, uploadResponse{
		Handled:   true,
		Filename:  filename,
		Pipeline:  res.Pipeline,
		RunID:     res.RunID,
		Revision:  res.Revision,
		Terms:     res.Dataset.Terms(),
		Events:    res.Dataset.EventCount(),
		Documents: res.Documents,
	})
}

// handleDataset returns the persisted dataset of a pipeline as stored.
//
// GET /api/datasets/{pipeline}
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("pipeline")
	p, ok := s.reg.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown pipeline %q", name))
		return
	}

	s.datasetMu.RLock()
	dc := s.datasetCache[name]
	s.datasetMu.RUnlock()
	if dc != nil && time.Since(dc.updatedAt) < datasetCacheTTL {
		writeRawJSON(w, dc.data)
		return
	}

	data, err := p.Dataset(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no dataset persisted yet")
			return
		}
		appLog.Error("dataset load failed", err, "pipeline", name)
		writeError(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}

	s.datasetMu.Lock()
	s.datasetCache[name] = &datasetCache{data: data, updatedAt: time.Now()}
	s.datasetMu.Unlock()

	writeRawJSON(w, data)
}

func (s *Server) invalidate(name string) {
	s.datasetMu.Lock()
	delete(s.datasetCache, name)
	s.datasetMu.Unlock()
}

// handleDecode decodes an event_code back into its calendar record.
//
// GET /api/decode?code=...
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	// Query parsing already removed one level of escaping. A client that
	// escaped the token again sends it verbatim.
	rec, err := token.Decode(url.QueryEscape(code))
	if err != nil {
		rec, err = token.Decode(code)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleHistory lists recent runs.
//
// GET /api/history?limit=20
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		appLog.Error("history query failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeRawJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
