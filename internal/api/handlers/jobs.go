package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

// JobsHandler handles job submission and lifecycle requests
type JobsHandler struct {
	orch   *orchestrator.Orchestrator
	logger *logrus.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(orch *orchestrator.Orchestrator, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{orch: orch, logger: logger}
}

// SubmitJobRequest represents a job submission request body
type SubmitJobRequest struct {
	Paths      []string `json:"paths"`
	Scheme     string   `json:"scheme,omitempty"`
	OutputDir  string   `json:"output_dir,omitempty"`
	Operation  string   `json:"operation,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
	WebhookURL string   `json:"webhook_url,omitempty"`
	MediaType  string   `json:"media_type,omitempty"`
}

// ServeCollection handles /api/jobs
func (h *JobsHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		writeJSON(w, h.orch.List())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeItem handles /api/jobs/{id} and /api/jobs/{id}/cancel
func (h *JobsHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.serveJob(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "cancel":
		h.cancel(w, r, parts[0])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *JobsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		http.Error(w, "At least one path is required", http.StatusBadRequest)
		return
	}

	if req.Operation != "" && req.Operation != string(models.OperationMove) && req.Operation != string(models.OperationCopy) {
		http.Error(w, "Operation must be move or copy", http.StatusBadRequest)
		return
	}
	if req.MediaType != "" && req.MediaType != string(models.MediaTypeMovie) && req.MediaType != string(models.MediaTypeTV) {
		http.Error(w, "Media type must be movie or tv", http.StatusBadRequest)
		return
	}

	jobID, err := h.orch.Submit(orchestrator.SubmitRequest{
		Paths:      req.Paths,
		Scheme:     req.Scheme,
		OutputDir:  req.OutputDir,
		Operation:  models.Operation(req.Operation),
		DryRun:     req.DryRun,
		WebhookURL: req.WebhookURL,
		MediaType:  models.MediaType(req.MediaType),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (h *JobsHandler) serveJob(w http.ResponseWriter, r *http.Request, jobID string) {
	switch r.Method {
	case http.MethodGet:
		job, err := h.orch.Get(jobID)
		if err != nil {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, job)
	case http.MethodDelete:
		err := h.orch.Delete(jobID)
		switch {
		case errors.Is(err, orchestrator.ErrJobNotFound):
			http.Error(w, "Job not found", http.StatusNotFound)
		case errors.Is(err, orchestrator.ErrJobRunning):
			http.Error(w, "Job is still running", http.StatusConflict)
		case err != nil:
			h.logger.WithError(err).Error("Failed to delete job")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobsHandler) cancel(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.orch.Cancel(jobID); err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
