package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/taskstore"
)

// Processor runs the full pipeline for one claimed task.
type Processor interface {
	Process(ctx context.Context, taskID, mediaURL string) (*taskstore.Result, error)
}

// TaskCoordinator is the slice of the coordinator the worker needs.
type TaskCoordinator interface {
	Claim(ctx context.Context, taskID string, claim taskstore.Claim) (taskstore.ClaimOutcome, error)
	Complete(ctx context.Context, taskID string, result *taskstore.Result) error
	Fail(ctx context.Context, taskID string, message string) error
}

// Worker consumes tasks from the broker, claims them, and runs the
// pipeline on the ones it wins.
type Worker struct {
	cfg         *config.Config
	coordinator TaskCoordinator
	processor   Processor
	notifier    notifications.Service
	logger      *slog.Logger
	workerID    string
	host        string
	server      *asynq.Server
}

// New builds a worker. The worker identity is minted once per process so
// every task it claims carries the same worker_id.
func New(cfg *config.Config, coordinator TaskCoordinator, processor Processor, notifier notifications.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNoopService()
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &Worker{
		cfg:         cfg,
		coordinator: coordinator,
		processor:   processor,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "worker"),
		workerID:    host + "-" + uuid.NewString(),
		host:        host,
	}
}

// WorkerID returns the identity written into claimed task records.
func (w *Worker) WorkerID() string { return w.workerID }

// Run starts the broker server and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessVideo, w.HandleTask)

	w.server = asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     w.cfg.Redis.Addr,
			Password: w.cfg.Redis.Password,
			DB:       w.cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency:     w.cfg.Queue.Concurrency,
			Queues:          map[string]int{w.cfg.Queue.Name: 1},
			ShutdownTimeout: time.Duration(w.cfg.Queue.ShutdownTimeoutSeconds) * time.Second,
			Logger:          newAsynqLogger(w.logger),
		},
	)

	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	w.logger.Info("worker started",
		logging.String(logging.FieldWorkerID, w.workerID),
		logging.String("queue", w.cfg.Queue.Name),
		logging.Int("concurrency", w.cfg.Queue.Concurrency))

	<-ctx.Done()
	w.logger.Info("shutting down")
	w.server.Shutdown()
	return nil
}

// HandleTask processes one broker delivery end to end.
func (w *Worker) HandleTask(ctx context.Context, task *asynq.Task) error {
	message, err := queue.ParseTask(task)
	if err != nil {
		w.logger.Error("dropping malformed task", logging.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ctx = services.WithTaskID(ctx, message.TaskID)
	ctx = services.WithWorkerID(ctx, w.workerID)
	logger := logging.WithContext(ctx, w.logger)

	outcome, err := w.coordinator.Claim(ctx, message.TaskID, taskstore.Claim{
		WorkerID:   w.workerID,
		Host:       w.host,
		PickupTime: time.Now().Unix(),
	})
	if err != nil {
		// Ownership is unverifiable, so leave the task for a later delivery.
		return err
	}
	if outcome != taskstore.Claimed {
		logger.Info("skipping delivery", logging.String("outcome", outcome.String()))
		return nil
	}

	taskCtx := ctx
	budget := w.taskBudget()
	if budget > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	result, err := w.processor.Process(taskCtx, message.TaskID, message.VideoURL)
	if err != nil {
		if taskCtx.Err() == context.DeadlineExceeded {
			// A stage killed by the budget surfaces its kill signal, not
			// the deadline. The record must name the timeout.
			err = services.Wrap(services.ErrTimeout, "", "",
				fmt.Sprintf("task timed out after %s", budget), err)
		}
		return w.finishFailed(ctx, logger, message, err)
	}
	return w.finishCompleted(ctx, logger, message, result)
}

func (w *Worker) finishCompleted(ctx context.Context, logger *slog.Logger, message queue.TaskMessage, result *taskstore.Result) error {
	if err := w.coordinator.Complete(ctx, message.TaskID, result); err != nil {
		logger.Error("terminal write lost", logging.Error(err))
		return err
	}
	logger.Info("task completed")

	if err := w.notifier.NotifyResult(ctx, message.WebhookURL, notifications.SuccessPayload(message.TaskID, result)); err != nil {
		logger.Warn("webhook delivery failed", logging.Error(err))
	}
	return nil
}

func (w *Worker) finishFailed(ctx context.Context, logger *slog.Logger, message queue.TaskMessage, taskErr error) error {
	detail := services.Details(taskErr).Message
	logger.Error("task failed", logging.Error(taskErr))

	if err := w.coordinator.Fail(ctx, message.TaskID, detail); err != nil {
		logger.Error("terminal write lost", logging.Error(err))
		return err
	}

	if err := w.notifier.NotifyResult(ctx, message.WebhookURL, notifications.FailurePayload(message.TaskID, detail)); err != nil {
		logger.Warn("webhook delivery failed", logging.Error(err))
	}

	// The claim is spent, so a broker retry could never reprocess this
	// task. Ack the delivery and let the record carry the failure.
	return nil
}

func (w *Worker) taskBudget() time.Duration {
	if w.cfg == nil {
		return 0
	}
	return time.Duration(w.cfg.Queue.TaskTimeoutSeconds) * time.Second
}
