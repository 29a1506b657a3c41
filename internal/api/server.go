// Package api exposes the HTTP surface: health and status, the tracked
// download queue, the blocklist and pending ledgers, manual search triggers
// and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bookarr/bookarr/internal/api/handlers"
	"github.com/bookarr/bookarr/internal/api/middleware"
	"github.com/bookarr/bookarr/internal/blocklist"
	"github.com/bookarr/bookarr/internal/config"
	"github.com/bookarr/bookarr/internal/library"
	"github.com/bookarr/bookarr/internal/metrics"
	"github.com/bookarr/bookarr/internal/models"
	"github.com/bookarr/bookarr/internal/pending"
	"github.com/bookarr/bookarr/internal/search"
	"github.com/bookarr/bookarr/internal/tracked"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// Services bundles everything the handlers need
type Services struct {
	DB        *models.Database
	Library   *library.Service
	Tracked   *tracked.Service
	Blocklist *blocklist.Service
	Pending   *pending.Service
	Search    *search.Service
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, svcs Services, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	s.setupRoutes(mux, svcs)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, svcs Services) {
	mux.HandleFunc("/health", handlers.NewHealthHandler(s.logger).ServeHTTP)
	mux.HandleFunc("/status", handlers.NewStatusHandler(svcs.DB, svcs.Tracked, s.logger).ServeHTTP)

	mux.HandleFunc("/api/authors", handlers.NewAuthorsHandler(svcs.DB, svcs.Library, s.logger).ServeHTTP)
	mux.HandleFunc("/api/books", handlers.NewBooksHandler(svcs.DB, svcs.Library, s.logger).ServeHTTP)
	mux.HandleFunc("/api/queue", handlers.NewQueueHandler(svcs.Tracked, s.logger).ServeHTTP)
	mux.HandleFunc("/api/blocklist", handlers.NewBlocklistHandler(svcs.Blocklist, s.logger).ServeHTTP)
	mux.HandleFunc("/api/pending", handlers.NewPendingHandler(svcs.Pending, s.logger).ServeHTTP)
	mux.HandleFunc("/api/search", handlers.NewSearchHandler(svcs.Search, s.logger).ServeHTTP)

	mux.Handle("/metrics", metrics.Handler())
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
