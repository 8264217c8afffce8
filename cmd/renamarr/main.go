package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amaumene/renamarr/internal/api"
	"github.com/amaumene/renamarr/internal/config"
	"github.com/amaumene/renamarr/internal/matcher"
	"github.com/amaumene/renamarr/internal/mediainfo"
	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/orchestrator"
	"github.com/amaumene/renamarr/internal/providers"
	"github.com/amaumene/renamarr/internal/providers/tmdb"
	"github.com/amaumene/renamarr/internal/providers/tvdb"
	"github.com/amaumene/renamarr/internal/renamer"
	"github.com/amaumene/renamarr/internal/scheduler"
	"github.com/amaumene/renamarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Renamarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile, cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Load ignore list
	ignore, err := utils.LoadIgnoreList(cfg.IgnoreFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load ignore list, continuing without it")
		ignore = &utils.IgnoreList{}
	} else {
		logger.Info("Ignore list loaded")
	}

	// 5. Initialize metadata providers in the configured order
	var chain []providers.Provider
	for _, id := range cfg.ProviderOrder {
		switch id {
		case "tmdb":
			client, err := tmdb.NewClient(cfg.TMDBAPIKey, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize TMDB client: %w", err)
			}
			chain = append(chain, client)
		case "tvdb":
			if cfg.TVDBAPIKey == "" {
				logger.Info("TVDB API key not set, skipping provider")
				continue
			}
			client, err := tvdb.NewClient(cfg.TVDBAPIKey, cfg.TVDBPin, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize TVDB client: %w", err)
			}
			chain = append(chain, client)
		}
		logger.WithField("provider", id).Info("Metadata provider initialized")
	}
	if len(chain) == 0 {
		return fmt.Errorf("no metadata providers configured")
	}

	// 6. Initialize core components
	m := matcher.NewMatcher(chain, cfg.MatchThreshold, logger)

	postProcessors := []renamer.PostProcessor{renamer.NewArtworkProcessor(logger)}
	ren := renamer.NewRenamer(db, postProcessors, logger)

	var techReader mediainfo.Reader
	if probe := mediainfo.NewFFProbeReader(cfg.FFProbePath, logger); probe.Available() {
		techReader = probe
		logger.Info("ffprobe found, technical tokens enabled")
	} else {
		logger.Warn("ffprobe not found, technical tokens render empty")
	}

	orch := orchestrator.NewOrchestrator(cfg, db, m, ren, techReader, ignore, logger)
	logger.Info("Orchestrator initialized")

	// 7. Initialize scheduler
	sched := scheduler.NewScheduler(orch, db, cfg.JobRetentionHours, cfg.MaxFinishedJobs, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 8. Initialize HTTP server
	server := api.NewServer(cfg, db, orch, ren, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 9. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Renamarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
		// Let in-flight jobs reach a terminal state before the
		// database closes
		orch.Wait()
	}

	logger.Info("Renamarr stopped")
	return nil
}
