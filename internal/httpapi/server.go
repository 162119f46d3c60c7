// Package httpapi implements the client-facing outbound side of
// fan-out: a REST surface over the catalog and analytics cache, a
// WebSocket surface carrying the event pipeline's domain messages,
// and SSE streams for long-running operations.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jacques/jacques/internal/analytics"
	"github.com/jacques/jacques/internal/config"
	"github.com/jacques/jacques/internal/eventpipe"
	"github.com/jacques/jacques/internal/searchindex"
	"github.com/jacques/jacques/internal/sessionregistry"
)

// Server serves the REST surface. The WebSocket surface is served by
// a separate *WSServer on its own port.
type Server struct {
	cfg      config.Config
	registry *sessionregistry.Registry
	pipe     *eventpipe.Pipe
	db       *analytics.DB

	indexMu sync.RWMutex
	index   *searchindex.Index

	writeTimeout time.Duration
	srv          *http.Server
}

// Option customizes a Server at construction time.
type Option func(*Server)

// WithWriteTimeout overrides the default per-request write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

// New builds a Server wired to the live registry, event pipe,
// analytics cache, and search index.
func New(cfg config.Config, registry *sessionregistry.Registry, pipe *eventpipe.Pipe, db *analytics.DB, index *searchindex.Index, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		registry:     registry,
		pipe:         pipe,
		db:           db,
		index:        index,
		writeTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSessionDetail)
	mux.HandleFunc("GET /api/v1/sessions/{id}/subagents", s.handleListSubagents)
	mux.HandleFunc("GET /api/v1/subagents/{agentID}", s.handleSubagentContent)
	mux.HandleFunc("GET /api/v1/catalog", s.handleProjectCatalog)
	mux.HandleFunc("GET /api/v1/archive/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/plans/{id}", s.handlePlanContent)
	mux.HandleFunc("GET /api/v1/analytics/summary", s.handleAnalyticsSummary)
	mux.HandleFunc("GET /api/v1/analytics/activity", s.handleAnalyticsActivity)
	mux.HandleFunc("GET /api/v1/analytics/tools", s.handleAnalyticsTools)
	mux.HandleFunc("GET /api/v1/analytics/top-sessions", s.handleAnalyticsTopSessions)
	mux.HandleFunc("POST /api/v1/archive/reindex", s.handleReindex)
	mux.HandleFunc("GET /api/v1/version", s.handleVersion)

	return mux
}

// Handler returns the full request handler, with host-check, CORS,
// and access-log middleware applied in that order.
func (s *Server) Handler() http.Handler {
	return s.hostCheckMiddleware(s.corsMiddleware(s.logMiddleware(s.routes())))
}

// ListenAndServe binds cfg.Host:cfg.Port and serves until ctx is
// cancelled, at which point it shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// FindAvailablePort scans forward from start for a free TCP port on
// host, so a caller can fall back to an alternate port rather than
// failing startup outright when the configured one is taken.
func FindAvailablePort(host string, start int) (int, error) {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found starting at %d", start)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

