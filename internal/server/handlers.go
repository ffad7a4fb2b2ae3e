package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manifd/manifd"
)

const (
	authorHeader = "X-Manifd-Author"
	logPageSize  = 100
)

// errorBody is the JSON error envelope. Kind carries the failure class so
// clients can map it back to a sentinel error.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Handler returns the HTTP surface:
//
//	GET  /manifest/latest    latest revision metadata
//	GET  /manifest/log       revision history page (?from=N)
//	GET  /manifest/{digest}  raw content, immutable
//	POST /manifest           publish new content
//	GET  /healthz            readiness
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /manifest/latest", s.handleLatest)
	mux.HandleFunc("GET /manifest/log", s.handleLog)
	mux.HandleFunc("GET /manifest/{digest}", s.handleBlob)
	mux.HandleFunc("POST /manifest", s.handlePublish)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s.logRequests(mux)
}

// logRequests tags every request with an ID and logs method, path, and
// duration at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rev, err := s.ResolveLatest(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	digest, err := manifd.ParseDigest(r.PathValue("digest"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := s.store.Get(r.Context(), digest)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Content-addressed, therefore immutable: cacheable forever.
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("ETag", `"`+digest.String()+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxSize+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, manifd.ErrInvalidInput)
			return
		}
		s.writeError(w, err)
		return
	}

	rev, err := s.Publish(r.Context(), content, r.Header.Get(authorHeader))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var from uint64
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, manifd.ErrInvalidInput)
			return
		}
		from = n
	}

	revs, err := s.log.List(from, logPageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if revs == nil {
		revs = []manifd.Revision{}
	}
	writeJSON(w, http.StatusOK, revs)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	if status >= 500 {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Kind: kind, Message: err.Error()})
}

// classify maps the error taxonomy onto HTTP. ErrKind strings are part of
// the wire contract; the client rebuilds sentinels from them.
func classify(err error) (kind string, status int) {
	switch {
	case errors.Is(err, manifd.ErrInvalidInput):
		return "invalid_input", http.StatusBadRequest
	case errors.Is(err, manifd.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, manifd.ErrConflict):
		return "conflict", http.StatusConflict
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
