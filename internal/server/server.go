// Package server provides the HTTP API for tanya.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/evaluate"
	"github.com/hyperjump/tanya/internal/ingest"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/session"
	"github.com/hyperjump/tanya/internal/vectorstore"
)

// Deps are the long-lived components the API serves. Keyword may be nil.
type Deps struct {
	Pipeline  *ingest.Pipeline
	Session   *session.Service
	Evaluator *evaluate.Evaluator
	Store     *vectorstore.Store
	Keyword   keyword.Index
}

// Server is the HTTP server for the tanya API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server

	// work serializes ingest, ask and evaluate.
	work sync.Mutex
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleIngestDocuments)
		r.Post("/ask", s.handleAsk)
		r.Get("/history", s.handleHistory)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/search", s.handleSearch)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
