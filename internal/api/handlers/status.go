package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	orch   *orchestrator.Orchestrator
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(orch *orchestrator.Orchestrator, db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		orch:   orch,
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalJobs   int `json:"total_jobs"`
	Pending     int `json:"pending"`
	Running     int `json:"running"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
	HistorySize int `json:"history_size"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := h.orch.List()

	response := StatusResponse{TotalJobs: len(jobs)}
	for _, job := range jobs {
		switch job.State {
		case models.JobStatePending:
			response.Pending++
		case models.JobStateRunning:
			response.Running++
		case models.JobStateCompleted:
			response.Completed++
		case models.JobStateFailed:
			response.Failed++
		case models.JobStateCancelled:
			response.Cancelled++
		}
	}

	if n, err := h.db.HistoryCount(); err != nil {
		h.logger.WithError(err).Error("Failed to count history")
	} else {
		response.HistorySize = n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
