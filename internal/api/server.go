package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/renamarr/internal/api/handlers"
	"github.com/amaumene/renamarr/internal/api/middleware"
	"github.com/amaumene/renamarr/internal/config"
	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/orchestrator"
	"github.com/amaumene/renamarr/internal/renamer"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	db      *models.Database
	orch    *orchestrator.Orchestrator
	renamer *renamer.Renamer
	logger  *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, orch *orchestrator.Orchestrator, ren *renamer.Renamer, logger *logrus.Logger) *Server {
	s := &Server{
		db:      db,
		orch:    orch,
		renamer: ren,
		logger:  logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

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
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health check
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	// Status endpoint
	statusHandler := handlers.NewStatusHandler(s.orch, s.db, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	// Job submission and lifecycle
	jobsHandler := handlers.NewJobsHandler(s.orch, s.logger)
	mux.HandleFunc("/api/jobs", jobsHandler.ServeCollection)
	mux.HandleFunc("/api/jobs/", jobsHandler.ServeItem)

	// Rename history with undo/redo
	historyHandler := handlers.NewHistoryHandler(s.db, s.renamer, s.logger)
	mux.HandleFunc("/api/history", historyHandler.ServeHTTP)
	mux.HandleFunc("/api/history/undo", historyHandler.ServeUndo)
	mux.HandleFunc("/api/history/redo", historyHandler.ServeRedo)

	// Naming presets
	presetsHandler := handlers.NewPresetsHandler(s.db, s.logger)
	mux.HandleFunc("/api/presets", presetsHandler.ServeCollection)
	mux.HandleFunc("/api/presets/", presetsHandler.ServeItem)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

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
