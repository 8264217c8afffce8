package scheduler

import (
	"fmt"
	"time"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/orchestrator"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler manages scheduled maintenance tasks
type Scheduler struct {
	cron            *cron.Cron
	orch            *orchestrator.Orchestrator
	db              *models.Database
	logger          *logrus.Logger
	retentionHours  int
	maxFinishedJobs int
}

// NewScheduler creates a new scheduler
func NewScheduler(orch *orchestrator.Orchestrator, db *models.Database, retentionHours, maxFinishedJobs int, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(),
		orch:            orch,
		db:              db,
		logger:          logger,
		retentionHours:  retentionHours,
		maxFinishedJobs: maxFinishedJobs,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every hour: prune finished jobs past the retention window or
	// beyond the count cap
	_, err := s.cron.AddFunc("0 * * * *", func() {
		s.runPrune()
	})
	if err != nil {
		return fmt.Errorf("failed to add prune job: %w", err)
	}

	// Daily: trim the rename history back to its cap. Appends trim on
	// the fly; this catches a cap lowered since the entries were written.
	_, err = s.cron.AddFunc("0 3 * * *", func() {
		s.runCompact()
	})
	if err != nil {
		return fmt.Errorf("failed to add history compaction job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Run the maintenance once at startup so a restart with an old
	// database does not wait for the next tick to converge
	go func() {
		s.runPrune()
		s.runCompact()
	}()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runPrune executes the finished-job prune
func (s *Scheduler) runPrune() {
	maxAge := time.Duration(s.retentionHours) * time.Hour
	pruned := s.orch.PruneTerminal(maxAge, s.maxFinishedJobs)
	if pruned > 0 {
		s.logger.WithField("pruned", pruned).Info("Pruned finished jobs")
	} else {
		s.logger.Debug("No finished jobs to prune")
	}
}

// runCompact trims the rename history to its retention cap
func (s *Scheduler) runCompact() {
	if err := s.db.CompactHistory(); err != nil {
		s.logger.WithError(err).Error("History compaction failed")
	}
}
