// Package httpserver wraps the standard HTTP server with the configured
// timeouts and graceful shutdown.
package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/advanced-ai/backend/internal/config"
	"github.com/advanced-ai/backend/pkg/logger"
)

// Server owns the process's HTTP listener.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// New builds a server bound to the configured host and port.
func New(cfg config.ServerConfig, log *logger.Logger, handler http.Handler) *Server {
	if log == nil {
		log = logger.NewDefault("httpserver")
	}
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: log,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Start listens and serves until the server is shut down. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
