package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/klubi/relay/internal/orchestrator"
	"github.com/klubi/relay/internal/store"
	"github.com/klubi/relay/internal/tools"
)

// Deps are the components the API exposes.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Tools        *tools.Registry
	Store        store.Store
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Server is the relay REST API server. It runs tasks through the
// orchestrator, records them as TaskRuns and exposes the tool registry.
type Server struct {
	router *mux.Router
	deps   Deps
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a fully-wired Server ready to Start().
func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	srv := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		logger: logger,
	}
	srv.server = &http.Server{
		Addr:        addr,
		Handler:     srv.router,
		ReadTimeout: 15 * time.Second,
		// Orchestration is synchronous; the write deadline has to cover it.
		WriteTimeout: 5 * time.Minute,
	}
	srv.registerRoutes()
	return srv
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening and serving HTTP requests. It blocks until the
// server is shut down or encounters a fatal error.
func (s *Server) Start() error {
	s.logger.Info("API server starting", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
