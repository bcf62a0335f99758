// Package server exposes the RAG engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 32 << 20

// Pipeline is the engine surface served over HTTP
type Pipeline interface {
	Ingest(ctx context.Context, items []rag.IngestItem, mode rag.IngestMode) (int, error)
	Ask(ctx context.Context, q rag.Query) (*rag.Answer, error)
	Delete(ctx context.Context, docID string) (int, error)
	Stats(ctx context.Context) (rag.StoreStats, error)
}

// Server routes HTTP requests to a Pipeline
type Server struct {
	pipeline Pipeline
	logger   log.Logger
	mux      *http.ServeMux
}

// New creates a server; a nil logger uses the package default
func New(pipeline Pipeline, logger log.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		logger:   log.OrDefault(logger),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /rag/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /rag/ask", s.handleAsk)
	s.mux.HandleFunc("DELETE /rag/documents/{doc_id}", s.handleDelete)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// Handler returns the root handler with request ids attached
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("%s %s request_id=%s took=%s", r.Method, r.URL.Path, id, time.Since(start))
	})
}

type ingestItem struct {
	DocID    string         `json:"doc_id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	// Meta is accepted as an alias of Metadata
	Meta map[string]any `json:"meta"`
}

type ingestRequest struct {
	Items []ingestItem `json:"items"`
	Mode  string       `json:"mode"`
}

type ingestResponse struct {
	OK          bool `json:"ok"`
	ChunksAdded int  `json:"chunks_added"`
}

type askRequest struct {
	Question string  `json:"question"`
	K        *int    `json:"k"`
	DocID    *string `json:"doc_id"`
}

type deleteResponse struct {
	OK            bool `json:"ok"`
	ChunksDeleted int  `json:"chunks_deleted"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Chunks    int    `json:"chunks"`
	Documents int    `json:"documents"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	mode, err := rag.ParseIngestMode(req.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]rag.IngestItem, len(req.Items))
	for i, it := range req.Items {
		meta := it.Metadata
		if meta == nil {
			meta = it.Meta
		}
		items[i] = rag.IngestItem{DocID: it.DocID, Content: it.Content, Metadata: meta}
	}

	added, err := s.pipeline.Ingest(r.Context(), items, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{OK: true, ChunksAdded: added})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	q := rag.Query{Question: req.Question}
	if req.K != nil {
		if *req.K < 1 {
			s.writeError(w, r, fmt.Errorf("%w: k must be at least 1, got %d", rag.ErrInvalidArgument, *req.K))
			return
		}
		q.K = *req.K
	}
	if req.DocID != nil {
		q.DocID = *req.DocID
	}

	answer, err := s.pipeline.Ask(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if answer.Sources == nil {
		answer.Sources = []rag.Source{}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	n, err := s.pipeline.Delete(r.Context(), r.PathValue("doc_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{OK: true, ChunksDeleted: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Chunks: stats.Chunks, Documents: stats.Documents})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", rag.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: invalid JSON body: %w", rag.ErrInvalidArgument, err)
	}
	return nil
}

// StatusCode maps an error to its HTTP status
func StatusCode(err error) int {
	switch rag.ErrorKind(err) {
	case "invalid_argument":
		return http.StatusBadRequest
	case "provider_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s request_id=%s: %v", r.Method, r.URL.Path, w.Header().Get(RequestIDHeader), err)
	} else {
		s.logger.Warn("%s %s request_id=%s: %v", r.Method, r.URL.Path, w.Header().Get(RequestIDHeader), err)
	}
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Message: err.Error(), Type: rag.ErrorKind(err)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
