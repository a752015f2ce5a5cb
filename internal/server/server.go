// Package server provides the thin HTTP surface in front of the core:
// health, metrics, a synchronous search endpoint, and an endpoint that
// enqueues indexing requests onto the transport.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/config"
	"github.com/hyperjump/chishiki/internal/runtime"
)

// Server is the HTTP server for the Chishiki API.
type Server struct {
	rt     *runtime.Runtime
	cfg    *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server over the runtime.
func NewServer(rt *runtime.Runtime, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{rt: rt, cfg: cfg, logger: logger}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.rt.Metrics.Registry, promhttp.HandlerOpts{}))
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/documents", s.handleIndexDocument)
	r.Get("/api/v1/projects/{project}/documents", s.handleListDocuments)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{Addr: addr, Handler: r}
	s.logger.Info("http server listening", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
