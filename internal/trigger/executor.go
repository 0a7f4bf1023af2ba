package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// WebhookExecutor posts due jobs to the marketing-automation collaborator.
// The collaborator acknowledges the outcome asynchronously through the
// trigger ack endpoint; a missing webhook URL degrades to log-only dispatch
// for local development.
type WebhookExecutor struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewWebhookExecutor(url string, log *zap.Logger) *WebhookExecutor {
	return &WebhookExecutor{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Dispatch delivers one due job.
func (e *WebhookExecutor) Dispatch(ctx context.Context, job *domain.TriggerJob) error {
	if e.url == "" {
		e.log.Info("Trigger job due (no webhook configured)",
			zap.String("job_id", job.JobID),
			zap.String("trigger", job.TriggerName),
			zap.String("action", job.Action))
		return nil
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver trigger job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected trigger job: status %d", resp.StatusCode)
	}
	return nil
}
