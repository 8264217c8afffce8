package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/renamarr/internal/models"
)

// WebhookNotifier posts a job summary to a caller-supplied URL when a
// job reaches a terminal state. One attempt per job, no retries.
type WebhookNotifier struct {
	client *http.Client
	logger *logrus.Logger
}

type webhookPayload struct {
	JobID     string                `json:"job_id"`
	State     models.JobState       `json:"state"`
	Total     int                   `json:"total"`
	Processed int                   `json:"processed"`
	Error     string                `json:"error,omitempty"`
	Results   []models.RenameResult `json:"results"`
}

func NewWebhookNotifier(timeout time.Duration, logger *logrus.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify delivers the terminal summary for job. The caller decides
// what to do with a failure; this type never retries.
func (w *WebhookNotifier) Notify(job models.Job) error {
	payload := webhookPayload{
		JobID:     job.ID,
		State:     job.State,
		Total:     job.Total,
		Processed: job.Processed,
		Error:     job.Error,
		Results:   job.Results,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	resp, err := w.client.Post(job.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"url":    job.WebhookURL,
	}).Debug("Webhook delivered")
	return nil
}
