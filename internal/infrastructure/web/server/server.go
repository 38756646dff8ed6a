package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crypto-price-monitor/internal/infrastructure/config"
	"crypto-price-monitor/internal/infrastructure/logging"
)

const idleTimeout = 60 * time.Second

// Server encapsulates HTTP server configuration
type Server struct {
	httpServer *http.Server
	port       int
}

// NewServer creates a new server instance
func NewServer(handler http.Handler, cfg config.ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  idleTimeout,
		},
		port: cfg.Port,
	}
}

// Start bloquea hasta Stop; http.ErrServerClosed no se considera error
func (s *Server) Start() error {
	ctx := context.Background()

	logging.Info(ctx, "HTTP server starting", logging.Fields{
		"port": s.port,
	})

	logging.Info(ctx, "Available endpoints", logging.Fields{
		"endpoints": []string{
			fmt.Sprintf("GET  http://localhost:%d/health", s.port),
			fmt.Sprintf("GET  http://localhost:%d/ready", s.port),
			fmt.Sprintf("GET  http://localhost:%d/api/v1/prices", s.port),
			fmt.Sprintf("GET  http://localhost:%d/api/v1/prices/{id}", s.port),
			fmt.Sprintf("GET  http://localhost:%d/api/v1/admin/stats", s.port),
			fmt.Sprintf("POST http://localhost:%d/api/v1/admin/refresh", s.port),
			fmt.Sprintf("GET  ws://localhost:%d/ws/prices", s.port),
			fmt.Sprintf("GET  http://localhost:%d/metrics", s.port),
			fmt.Sprintf("GET  http://localhost:%d/swagger/", s.port),
		},
	})

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	logging.Info(ctx, "Stopping HTTP server gracefully", logging.Fields{
		"port": s.port,
	})

	return s.httpServer.Shutdown(ctx)
}

// GetPort returns the configured port
func (s *Server) GetPort() int {
	return s.port
}
