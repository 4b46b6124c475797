// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

// Package api serves the read-mostly REST API under /api/v1/. Reads are open
// to anonymous callers, who only see public and promoted panels. Writes need
// an "Authorization: Token <token>" header naming a configured user.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/genepanels/panelapp/internal/blob"
	"github.com/genepanels/panelapp/internal/core"
	"github.com/genepanels/panelapp/internal/exports"
	"github.com/genepanels/panelapp/internal/logging"
	"github.com/genepanels/panelapp/internal/metrics"
	"github.com/genepanels/panelapp/internal/model"
)

const maxPageSize = 100

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server routes API requests to the service.
type Server struct {
	svc      *core.Service
	exports  *exports.Worker
	metrics  *metrics.Recorder
	tokens   map[string]string
	pageSize int
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithTokens maps API tokens to usernames.
func WithTokens(tokens map[string]string) Option {
	return func(s *Server) { s.tokens = tokens }
}

// WithPageSize sets the default page size, capped at 100.
func WithPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 && n <= maxPageSize {
			s.pageSize = n
		}
	}
}

// WithExports enables the /api/v1/exports/ endpoints.
func WithExports(w *exports.Worker) Option {
	return func(s *Server) { s.exports = w }
}

// WithMetrics enables /metrics and request counters.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds the router.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, pageSize: maxPageSize, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		m.Handle("GET /metrics", s.metrics.Handler())
	}

	m.HandleFunc("GET /api/v1/panels/{$}", s.handleListPanels)
	m.HandleFunc("GET /api/v1/panels/{id}/{$}", s.handleGetPanel)
	m.HandleFunc("GET /api/v1/panels/{id}/versions/{$}", s.handleListVersions)
	m.HandleFunc("POST /api/v1/panels/{id}/versions/{$}", s.authenticated(s.handleIncrementVersion))
	m.HandleFunc("GET /api/v1/panels/{id}/activities/{$}", s.handlePanelActivities)
	m.HandleFunc("GET /api/v1/panels/{id}/download/{$}", s.handleDownload)
	m.HandleFunc("GET /api/v1/panels/{id}/{type}/{$}", s.handleListEntities)
	m.HandleFunc("GET /api/v1/panels/{id}/{type}/{name}/{$}", s.handleGetEntity)
	m.HandleFunc("GET /api/v1/panels/{id}/{type}/{name}/evaluations/{$}", s.handleListEvaluations)
	m.HandleFunc("POST /api/v1/panels/{id}/{type}/{name}/evaluations/{$}", s.authenticated(s.handleSubmitEvaluation))
	m.HandleFunc("GET /api/v1/genes/{symbol}/{$}", s.handleGene)
	m.HandleFunc("GET /api/v1/activities/{$}", s.handleActivities)
	m.HandleFunc("POST /api/v1/exports/{$}", s.authenticated(s.handleCreateExport))
	m.HandleFunc("GET /api/v1/exports/{id}/{$}", s.handleGetExport)
	m.HandleFunc("GET /api/v1/exports/{id}/download/{$}", s.handleDownloadExport)
}

// Handler returns the router wrapped in access logging and, when enabled,
// request metrics.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.metrics != nil {
		h = s.metrics.Middleware(routeLabel, h)
	}
	return accessLog(h)
}

// routeLabel is the matched pattern; the mux sets it on the request.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

type loggingWriter struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (w *loggingWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(lw, r)
		logging.With("method", r.Method, "path", r.URL.Path, "status", lw.code,
			"bytes", lw.bytes, "duration", time.Since(start).Round(time.Microsecond)).Info("http request")
	})
}

type userKey struct{}

// viewer resolves the optional token. A malformed or unknown token is an
// error even on read endpoints.
func (s *Server) viewer(r *http.Request) (*model.User, error) {
	if u, ok := r.Context().Value(userKey{}).(*model.User); ok {
		return u, nil
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return nil, nil
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Token") || strings.TrimSpace(token) == "" {
		return nil, errUnauthenticated
	}
	username, ok := s.tokens[strings.TrimSpace(token)]
	if !ok {
		return nil, errUnauthenticated
	}
	u, err := s.svc.ResolveUser(r.Context(), username)
	if err != nil {
		return nil, errUnauthenticated
	}
	return u, nil
}

var errUnauthenticated = errors.New("authentication credentials were not provided or are invalid")

// authenticated rejects requests without a valid token.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.viewer(r)
		if err == nil && u == nil {
			err = errUnauthenticated
		}
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.svc.Store().(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "detail": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrImport), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, exports.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logging.Errorf("api: %v", err)
		msg = "internal server error"
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Token")
	}
	writeJSON(w, code, map[string]string{"detail": msg})
}
