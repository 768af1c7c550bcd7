package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/taskstore"
)

// Payload is the webhook body delivered when a task finishes. Results is
// null on failure and Error is null on success.
type Payload struct {
	JobID   string            `json:"job_id"`
	Status  string            `json:"status"`
	Results *taskstore.Result `json:"results"`
	Error   *string           `json:"error"`
}

// Service delivers task outcomes to the caller's webhook.
type Service interface {
	NotifyResult(ctx context.Context, webhookURL string, payload Payload) error
}

// NewService builds the webhook notifier.
func NewService(cfg config.Webhook, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &webhookService{
		client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
}

// NewNoopService returns a notifier that silently drops everything, for
// tasks enqueued without a webhook.
func NewNoopService() Service {
	return noopService{}
}

type webhookService struct {
	client *http.Client
	logger *slog.Logger
}

func (s *webhookService) NotifyResult(ctx context.Context, webhookURL string, payload Payload) error {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify %s: encode payload: %w", payload.JobID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("notify %s: build request: %w", payload.JobID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify %s: deliver: %w", payload.JobID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify %s: webhook returned %d", payload.JobID, resp.StatusCode)
	}

	s.logger.Info("webhook delivered",
		logging.String(logging.FieldTaskID, payload.JobID),
		logging.String("status", payload.Status))
	return nil
}

type noopService struct{}

func (noopService) NotifyResult(context.Context, string, Payload) error { return nil }

// SuccessPayload builds the payload for a completed task.
func SuccessPayload(taskID string, result *taskstore.Result) Payload {
	return Payload{
		JobID:   taskID,
		Status:  string(taskstore.StatusCompleted),
		Results: result,
	}
}

// FailurePayload builds the payload for a failed task.
func FailurePayload(taskID, message string) Payload {
	return Payload{
		JobID:  taskID,
		Status: string(taskstore.StatusFailed),
		Error:  &message,
	}
}
