// Package orchestrator runs batch rename jobs: many jobs concurrently,
// files within one job strictly in submission order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/config"
	"github.com/amaumene/renamarr/internal/matcher"
	"github.com/amaumene/renamarr/internal/mediainfo"
	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/parser"
	"github.com/amaumene/renamarr/internal/renamer"
	"github.com/amaumene/renamarr/internal/scheme"
	"github.com/amaumene/renamarr/internal/utils"
)

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned when deleting a job that has not
	// reached a terminal state; cancel or wait first.
	ErrJobRunning = errors.New("job is still running")
)

// SubmitRequest describes one batch rename submission. Zero-value
// fields fall back to the configured defaults.
type SubmitRequest struct {
	Paths      []string // files or directories, expanded at submission
	Scheme     string
	OutputDir  string
	Operation  models.Operation
	DryRun     bool
	WebhookURL string
	MediaType  models.MediaType // optional hint, "" = infer per file
}

// trackedJob pairs a job with its lock and cancellation flag. All
// reads and writes of the embedded job go through mu so readers see
// either the pre- or post-transition snapshot, never a torn one.
type trackedJob struct {
	mu        sync.Mutex
	job       models.Job
	cancelled bool
	mediaType models.MediaType
}

// Orchestrator owns the job registry and the worker pool.
type Orchestrator struct {
	cfg        *config.Config
	db         *models.Database
	matcher    *matcher.Matcher
	renamer    *renamer.Renamer
	techReader mediainfo.Reader // may be nil
	ignore     *utils.IgnoreList
	webhook    *WebhookNotifier
	logger     *logrus.Logger

	mu   sync.RWMutex
	jobs map[string]*trackedJob
	sem  chan struct{}
	wg   sync.WaitGroup
}

// NewOrchestrator creates an orchestrator and reloads persisted
// terminal jobs so they remain visible after a restart.
func NewOrchestrator(
	cfg *config.Config,
	db *models.Database,
	m *matcher.Matcher,
	r *renamer.Renamer,
	techReader mediainfo.Reader,
	ignore *utils.IgnoreList,
	logger *logrus.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		db:         db,
		matcher:    m,
		renamer:    r,
		techReader: techReader,
		ignore:     ignore,
		webhook:    NewWebhookNotifier(time.Duration(cfg.WebhookTimeoutSeconds)*time.Second, logger),
		logger:     logger,
		jobs:       make(map[string]*trackedJob),
		sem:        make(chan struct{}, cfg.MaxConcurrentJobs),
	}

	persisted, err := db.GetAllJobs()
	if err != nil {
		logger.WithError(err).Warn("Failed to reload persisted jobs")
		return o
	}
	for _, job := range persisted {
		if !job.State.IsTerminal() {
			// The process died mid-job; the files it never reached
			// were simply not attempted.
			job.State = models.JobStateFailed
			job.Error = "interrupted by shutdown"
			if err := db.SaveJob(job); err != nil {
				logger.WithError(err).Warn("Failed to update interrupted job")
			}
		}
		o.jobs[job.ID] = &trackedJob{job: *job}
	}
	return o
}

// Submit expands directories into a flat snapshot of media files and
// starts the job. It returns immediately with the job ID.
func (o *Orchestrator) Submit(req SubmitRequest) (string, error) {
	if len(req.Paths) == 0 {
		return "", fmt.Errorf("no paths submitted")
	}

	files := o.expandPaths(req.Paths)

	if req.Scheme == "" {
		req.Scheme = o.cfg.NamingScheme
	}
	if req.OutputDir == "" {
		req.OutputDir = o.cfg.OutputDir
	}
	if req.Operation == "" {
		req.Operation = models.OperationMove
	}

	t := &trackedJob{
		job: models.Job{
			ID:         uuid.NewString(),
			State:      models.JobStatePending,
			CreatedAt:  time.Now(),
			Files:      files,
			Scheme:     req.Scheme,
			OutputDir:  req.OutputDir,
			Operation:  req.Operation,
			DryRun:     req.DryRun || o.cfg.DryRun,
			WebhookURL: req.WebhookURL,
			Total:      len(files),
		},
		mediaType: req.MediaType,
	}

	o.mu.Lock()
	o.jobs[t.job.ID] = t
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"job_id": t.job.ID,
		"files":  len(files),
	}).Info("Job submitted")

	o.wg.Add(1)
	go o.run(t)

	return t.job.ID, nil
}

// Get returns a consistent snapshot of a job, including partial
// results while it runs.
func (o *Orchestrator) Get(jobID string) (models.Job, error) {
	o.mu.RLock()
	t, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	return t.snapshot(), nil
}

// List returns snapshots of all jobs, most recent first.
func (o *Orchestrator) List() []models.Job {
	o.mu.RLock()
	tracked := make([]*trackedJob, 0, len(o.jobs))
	for _, t := range o.jobs {
		tracked = append(tracked, t)
	}
	o.mu.RUnlock()

	jobs := make([]models.Job, 0, len(tracked))
	for _, t := range tracked {
		jobs = append(jobs, t.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

// Cancel requests cooperative cancellation. The flag is observed
// between files, never mid-operation. Cancelling a job that already
// reached a terminal state is a no-op.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.RLock()
	t, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.State.IsTerminal() {
		return nil
	}
	t.cancelled = true
	o.logger.WithField("job_id", jobID).Info("Job cancellation requested")
	return nil
}

// Delete removes a job record. Running jobs must be cancelled or
// awaited first.
func (o *Orchestrator) Delete(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	t.mu.Lock()
	terminal := t.job.State.IsTerminal()
	t.mu.Unlock()
	if !terminal {
		return ErrJobRunning
	}

	delete(o.jobs, jobID)
	if err := o.db.DeleteJob(jobID); err != nil && !errors.Is(err, models.ErrNotFound) {
		o.logger.WithError(err).Warn("Failed to delete persisted job")
	}
	return nil
}

// PruneTerminal drops terminal jobs older than maxAge, and the oldest
// terminal jobs beyond maxCount.
func (o *Orchestrator) PruneTerminal(maxAge time.Duration, maxCount int) int {
	cutoff := time.Now().Add(-maxAge)

	var terminal []models.Job
	for _, job := range o.List() {
		if job.State.IsTerminal() {
			terminal = append(terminal, job)
		}
	}
	// Oldest first so the count cap drops the oldest records.
	sort.Slice(terminal, func(i, j int) bool { return terminal[i].CreatedAt.Before(terminal[j].CreatedAt) })

	pruned := 0
	for i, job := range terminal {
		overCount := maxCount > 0 && len(terminal)-i > maxCount
		if job.CreatedAt.Before(cutoff) || overCount {
			if err := o.Delete(job.ID); err == nil {
				pruned++
			}
		}
	}
	return pruned
}

// Wait blocks until all in-flight jobs finish. Used during shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// run drives one job to a terminal state.
func (o *Orchestrator) run(t *trackedJob) {
	defer o.wg.Done()

	o.sem <- struct{}{}
	defer func() { <-o.sem }()

	if t.isCancelled() {
		o.finish(t, models.JobStateCancelled, "")
		return
	}

	t.mu.Lock()
	now := time.Now()
	t.job.State = models.JobStateRunning
	t.job.StartedAt = &now
	t.mu.Unlock()

	// Fatal pre-check: a configured output root we cannot create or
	// write makes every file pointless.
	if t.job.OutputDir != "" && !t.job.DryRun {
		if err := ensureWritableDir(t.job.OutputDir); err != nil {
			o.finish(t, models.JobStateFailed, fmt.Sprintf("output directory unusable: %v", err))
			return
		}
	}

	ctx := context.Background()
	for _, file := range t.job.Files {
		if t.isCancelled() {
			o.finish(t, models.JobStateCancelled, "")
			return
		}

		result := o.processFile(ctx, t, file)

		t.mu.Lock()
		t.job.Results = append(t.job.Results, result)
		t.job.Processed++
		t.mu.Unlock()
	}

	o.finish(t, models.JobStateCompleted, "")
}

// processFile runs parse -> match -> render -> rename for one file.
// Every per-file error is captured in the result; the job moves on.
func (o *Orchestrator) processFile(ctx context.Context, t *trackedJob, file string) models.RenameResult {
	guess := parser.Parse(filepath.Base(file))

	match, err := o.matcher.Match(ctx, guess, t.mediaType)
	if err != nil {
		o.logger.WithError(err).WithField("file", file).Warn("All providers unavailable")
		return models.RenameResult{
			OriginalPath: file,
			Reason:       models.ReasonProviderUnavailable,
			DryRun:       t.job.DryRun,
		}
	}
	if match == nil {
		return models.RenameResult{
			OriginalPath: file,
			Reason:       models.ReasonNoMatch,
			DryRun:       t.job.DryRun,
		}
	}

	var tech *models.TechInfo
	if o.techReader != nil {
		if info, err := o.techReader.Inspect(ctx, file); err != nil {
			o.logger.WithError(err).WithField("file", file).Debug("Media probe failed, tech tokens render empty")
		} else {
			tech = info
		}
	}

	rendered := scheme.Render(t.job.Scheme, match, tech)
	if rendered == "" {
		return models.RenameResult{
			OriginalPath: file,
			Reason:       "naming scheme rendered an empty path",
			DryRun:       t.job.DryRun,
		}
	}

	baseDir := t.job.OutputDir
	if baseDir == "" {
		baseDir = filepath.Dir(file)
	}
	ext := filepath.Ext(file)
	if !strings.HasSuffix(rendered, ext) {
		rendered += ext
	}
	destination := filepath.Join(baseDir, filepath.FromSlash(rendered))

	return o.renamer.Rename(file, destination, t.job.Operation, t.job.DryRun, match)
}

// finish applies the single terminal transition, persists the record
// and fires the webhook exactly once.
func (o *Orchestrator) finish(t *trackedJob, state models.JobState, errMsg string) {
	t.mu.Lock()
	if t.job.State.IsTerminal() {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	t.job.State = state
	t.job.CompletedAt = &now
	t.job.Error = errMsg
	job := t.snapshotLocked()
	t.mu.Unlock()

	if err := o.db.SaveJob(&job); err != nil {
		o.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to persist finished job")
	}

	o.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"state":     job.State,
		"processed": job.Processed,
		"total":     job.Total,
	}).Info("Job finished")

	if job.WebhookURL != "" {
		if err := o.webhook.Notify(job); err != nil {
			// Best-effort, one attempt, no retry; the terminal state
			// stands regardless.
			o.logger.WithError(err).WithField("job_id", job.ID).Warn("Webhook delivery failed")
		}
	}
}

// expandPaths flattens directories into media files at submission
// time. Later filesystem changes are not observed. Submitted paths
// keep their submission order; only the files found inside one
// directory are sorted among themselves.
func (o *Orchestrator) expandPaths(paths []string) []string {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			// Keep the path; processing will report it as a per-file
			// failure instead of silently dropping it.
			files = append(files, p)
			continue
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var expanded []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if !utils.IsMediaFile(path) {
				return nil
			}
			if o.ignore != nil {
				if ignored, term := o.ignore.IsIgnored(filepath.Base(path)); ignored {
					o.logger.WithFields(logrus.Fields{
						"file": path,
						"term": term,
					}).Debug("File ignored during expansion")
					return nil
				}
			}
			expanded = append(expanded, path)
			return nil
		})
		if err != nil {
			o.logger.WithError(err).WithField("dir", p).Warn("Directory expansion failed partway")
		}
		sort.Strings(expanded)
		files = append(files, expanded...)
	}
	return files
}

func (t *trackedJob) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *trackedJob) snapshot() models.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// snapshotLocked deep-copies the slices so callers never alias the
// orchestrator's own state. Caller holds t.mu.
func (t *trackedJob) snapshotLocked() models.Job {
	job := t.job
	job.Files = append([]string(nil), t.job.Files...)
	job.Results = append([]models.RenameResult(nil), t.job.Results...)
	return job
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".renamarr-*")
	if err != nil {
		return err
	}
	probe.Close()
	return os.Remove(probe.Name())
}
