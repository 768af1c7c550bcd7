package taskstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status tracks a task through its queue lifecycle. A task is created as
// sent, claimed exactly once into started, and finishes as completed or
// failed. Those two are terminal.
type Status string

const (
	StatusSent      Status = "sent"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusSent, StatusStarted, StatusCompleted, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("parse status: unknown value %q", raw)
	}
}

// Terminal reports whether the status ends the task lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AllStatuses returns every lifecycle status in order.
func AllStatuses() []Status {
	return []Status{StatusSent, StatusStarted, StatusCompleted, StatusFailed}
}

// ActionPoint is a single actionable item extracted from a transcript.
// Only Task is guaranteed; the rest is filled in when the transcript
// mentions it.
type ActionPoint struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee,omitempty"`
	Deadline string `json:"deadline,omitempty"`
	Details  string `json:"details,omitempty"`
}

// Result holds everything the pipeline produced for a completed task.
type Result struct {
	Transcription   string        `json:"transcription"`
	ActionPoints    []ActionPoint `json:"action_points"`
	ContextPoints   []string      `json:"context_points,omitempty"`
	FormattedOutput string        `json:"formatted_output,omitempty"`
}

// TaskRecord is the persisted state of one processing task.
//
// Timestamps are unix seconds. TimeToPickup is pickup minus send,
// TimeTaken is end minus send, and ProcessTime is end minus pickup.
type TaskRecord struct {
	TaskID       string  `json:"task_id"`
	Status       Status  `json:"status"`
	MediaURL     string  `json:"media_url"`
	WebhookURL   string  `json:"webhook_url,omitempty"`
	SendTime     int64   `json:"send_time"`
	PickupTime   int64   `json:"pickup_time,omitempty"`
	EndTime      int64   `json:"end_time,omitempty"`
	TimeToPickup float64 `json:"time_to_pickup,omitempty"`
	TimeTaken    float64 `json:"time_taken,omitempty"`
	ProcessTime  float64 `json:"process_time,omitempty"`
	WorkerID     string  `json:"worker_id,omitempty"`
	Host         string  `json:"host,omitempty"`
	StartedCount int64   `json:"started_count"`
	Result       *Result `json:"result,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the invariants a record must satisfy before persisting.
func (r *TaskRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("validate task: nil record")
	}
	if strings.TrimSpace(r.TaskID) == "" {
		return fmt.Errorf("validate task: missing task_id")
	}
	if strings.TrimSpace(r.MediaURL) == "" {
		return fmt.Errorf("validate task: missing media_url")
	}
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return err
	}
	if r.SendTime <= 0 {
		return fmt.Errorf("validate task: missing send_time")
	}
	return nil
}

func encodeResult(result *Result) (string, error) {
	if result == nil {
		return "", nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(raw), nil
}

func decodeResult(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}
