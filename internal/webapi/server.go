// Package webapi exposes the export service over HTTP.
//
// Routes:
//
//	POST /exports                → create an export job
//	GET  /exports/{id}           → job status JSON
//	GET  /exports/{id}/download  → execute the job, stream the output
//	GET  /benchmark              → run the per-format benchmark
//	GET  /healthz                → liveness probe
//	GET  /metrics                → Prometheus scrape (when enabled)
package webapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exportd/internal/bench"
	"exportd/internal/job"
	"exportd/internal/mapper"
)

// Config controls server startup.
type Config struct {
	Addr string
}

// Server wraps http.Server for convenience.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	coord   *job.Coordinator
	harness *bench.Harness
}

// NewServer constructs a Server with routes. metricsHandler may be nil when
// no scrape backend is configured; the route is then not registered.
func NewServer(cfg Config, coord *job.Coordinator, harness *bench.Harness, metricsHandler http.Handler) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		coord:   coord,
		harness: harness,
	}
	s.routes(metricsHandler)
	return s
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.cfg.Addr, s.mux)
}

// Handler exposes the route table, mostly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes(metricsHandler http.Handler) {
	s.mux.HandleFunc("POST /exports", s.handleCreate)
	s.mux.HandleFunc("GET /exports/{id}", s.handleStatus)
	s.mux.HandleFunc("GET /exports/{id}/download", s.handleDownload)
	s.mux.HandleFunc("GET /benchmark", s.handleBenchmark)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	if metricsHandler != nil {
		s.mux.Handle("GET /metrics", metricsHandler)
	}
}

type createRequest struct {
	Format      string                 `json:"format"`
	Columns     []mapper.ColumnMapping `json:"columns"`
	Compression string                 `json:"compression"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body: "+err.Error())
		return
	}
	j, err := s.coord.Create(req.Format, req.Compression, req.Columns)
	if err != nil {
		status, code := errStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	j, ok := s.coord.Job(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleDownload executes the job and streams its bytes. Success headers are
// deferred until the first output byte so that failures occurring before any
// output can still produce a proper JSON error response. After the first byte
// the response is committed; a later failure leaves it truncated and the job
// record carries the error.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	j, ok := s.coord.Job(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	ds := &deferredSink{w: w, job: j}
	err := s.coord.Execute(r.Context(), id, ds)
	if err == nil {
		// An empty dataset emits header/prologue bytes for every format, but
		// flush anyway in case nothing was written at all.
		ds.commit()
		return
	}
	if ds.wrote {
		log.Printf("webapi: download %s truncated: %v", id, err)
		return
	}
	status, code := errStatus(err)
	writeError(w, status, code, err.Error())
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	rep, err := s.harness.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deferredSink holds back the success headers until the first byte arrives.
type deferredSink struct {
	w     http.ResponseWriter
	job   job.Job
	wrote bool
}

func (d *deferredSink) Write(p []byte) (int, error) {
	d.commit()
	return d.w.Write(p)
}

func (d *deferredSink) commit() {
	if d.wrote {
		return
	}
	d.wrote = true
	h := d.w.Header()
	h.Set("Content-Type", d.job.Format.ContentType())
	h.Set("Content-Disposition", `attachment; filename="`+d.job.Filename()+`"`)
	if d.job.Compression == job.CompressionGzip {
		h.Set("Content-Encoding", "gzip")
	}
	d.w.WriteHeader(http.StatusOK)
}

func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, job.ErrNotPending):
		return http.StatusConflict, "already_executed"
	case errors.Is(err, job.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_format"
	case errors.Is(err, job.ErrInvalidColumns):
		return http.StatusBadRequest, "invalid_columns"
	case errors.Is(err, job.ErrUnsupportedCompression):
		return http.StatusBadRequest, "unsupported_compression"
	case errors.Is(err, job.ErrInvalidCompression):
		return http.StatusBadRequest, "invalid_compression"
	}
	return http.StatusInternalServerError, "internal"
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("webapi: encode response:", err)
	}
}
