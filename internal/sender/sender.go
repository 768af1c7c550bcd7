package sender

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/taskstore"
)

// Enqueuer is the slice of the asynq client the sender uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Sender creates task records and pushes the matching messages to the
// broker. The record is written first: a worker that receives a message
// for an unknown task drops it, while a record without a message simply
// never starts.
type Sender struct {
	cfg    *config.Config
	store  taskstore.Store
	client Enqueuer
	logger *slog.Logger
}

// New builds a sender around an existing broker client.
func New(cfg *config.Config, store taskstore.Store, client Enqueuer, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sender{
		cfg:    cfg,
		store:  store,
		client: client,
		logger: logging.NewComponentLogger(logger, "sender"),
	}
}

// NewClient creates an asynq client from configuration. The caller owns
// closing it.
func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Send registers a new task and enqueues it. Returns the generated task
// identifier.
func (s *Sender) Send(ctx context.Context, videoURL, webhookURL string) (string, error) {
	videoURL = strings.TrimSpace(videoURL)
	parsed, err := url.Parse(videoURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("send task: %q is not an absolute url", videoURL)
	}

	taskID := uuid.NewString()
	sendTime := time.Now().Unix()

	record := &taskstore.TaskRecord{
		TaskID:     taskID,
		Status:     taskstore.StatusSent,
		MediaURL:   videoURL,
		WebhookURL: strings.TrimSpace(webhookURL),
		SendTime:   sendTime,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("send task: %w", err)
	}

	task, err := queue.NewTask(queue.TaskMessage{
		TaskID:       taskID,
		TaskSendTime: sendTime,
		VideoURL:     videoURL,
		WebhookURL:   record.WebhookURL,
	})
	if err != nil {
		return "", fmt.Errorf("send task: %w", err)
	}

	if _, err := s.client.EnqueueContext(ctx, task, s.enqueueOptions(taskID)...); err != nil {
		if failErr := s.store.RecordTerminal(ctx, taskID, taskstore.Terminal{
			Status:       taskstore.StatusFailed,
			ErrorMessage: fmt.Sprintf("enqueue failed: %v", err),
			EndTime:      time.Now().Unix(),
		}); failErr != nil {
			s.logger.Error("could not mark unenqueued task failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(failErr))
		}
		return "", fmt.Errorf("send task %s: enqueue: %w", taskID, err)
	}

	s.logger.Info("task enqueued",
		logging.String(logging.FieldTaskID, taskID),
		logging.String(logging.FieldURL, videoURL))
	return taskID, nil
}

func (s *Sender) enqueueOptions(taskID string) []asynq.Option {
	taskTimeout := time.Duration(s.cfg.Queue.TaskTimeoutSeconds) * time.Second

	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(s.cfg.Queue.Name),
		asynq.MaxRetry(s.cfg.Queue.MaxRetries),
		// The broker timeout sits above the worker's own budget so the
		// worker always finalizes the record before the broker gives up.
		asynq.Timeout(taskTimeout + 2*time.Minute),
	}
	if s.cfg.Store.RetentionDays > 0 {
		opts = append(opts, asynq.Retention(time.Duration(s.cfg.Store.RetentionDays)*24*time.Hour))
	}
	return opts
}
