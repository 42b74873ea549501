// Package server provides the read-only HTTP API over a corpus.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/logging"
	"github.com/nvandessel/corpus-graph/internal/ratelimit"
)

// DefaultAddr binds to loopback on an OS-assigned port.
const DefaultAddr = "localhost:0"

// Server is the corpus HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
	logger  *slog.Logger
	limiter *ratelimit.Limiter

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLimiter replaces the per-client rate limiter. A nil limiter disables
// rate limiting.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates a Server over eng.
func New(eng *engine.Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		version: version,
		started: time.Now(),
		logger:  logging.Discard(),
		limiter: ratelimit.NewLimiter(20, 40), // 1200/minute per client, burst 40
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe serves on addr (DefaultAddr when empty) and blocks until
// the context is cancelled. A clean shutdown returns nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.logger.Info("http api listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(rateLimit(s.limiter))

	r.Get("/", s.handleIndex)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/nodes", s.handleListNodes)
		r.Get("/nodes/{id}", s.handleGetNode)
		r.Get("/nodes/{id}/neighbors", s.handleNeighbors)

		r.Get("/graph", s.handleGraph)
		r.Get("/graph/rank", s.handleRank)
		r.Get("/validate", s.handleValidate)
		r.Get("/related", s.handleRelated)
	})

	s.router = r
}
