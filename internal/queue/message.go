package queue

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
)

// TypeProcessVideo is the asynq task type for video processing requests.
const TypeProcessVideo = "video:process"

// TaskMessage is the payload carried through the broker. TaskSendTime is
// when the sender created the task, in unix seconds; pickup latency is
// measured against it.
type TaskMessage struct {
	TaskID       string `json:"task_id"`
	TaskSendTime int64  `json:"task_send_time"`
	VideoURL     string `json:"video_url"`
	WebhookURL   string `json:"webhook_url,omitempty"`
}

// Validate rejects messages a worker cannot act on.
func (m TaskMessage) Validate() error {
	if strings.TrimSpace(m.TaskID) == "" {
		return fmt.Errorf("task message: missing task_id")
	}
	if m.TaskSendTime <= 0 {
		return fmt.Errorf("task message %s: missing task_send_time", m.TaskID)
	}
	if strings.TrimSpace(m.VideoURL) == "" {
		return fmt.Errorf("task message %s: missing video_url", m.TaskID)
	}
	parsed, err := url.Parse(m.VideoURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("task message %s: video_url %q is not an absolute url", m.TaskID, m.VideoURL)
	}
	return nil
}

// NewTask packs the message into an asynq task.
func NewTask(message TaskMessage) (*asynq.Task, error) {
	if err := message.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("task message %s: encode: %w", message.TaskID, err)
	}
	return asynq.NewTask(TypeProcessVideo, payload), nil
}

// ParseTask unpacks and validates an asynq task payload.
func ParseTask(task *asynq.Task) (TaskMessage, error) {
	var message TaskMessage
	if err := json.Unmarshal(task.Payload(), &message); err != nil {
		return message, fmt.Errorf("task message: decode: %w", err)
	}
	if err := message.Validate(); err != nil {
		return message, err
	}
	return message, nil
}
