package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/taskstore"
)

// Coordinator mediates all task-state access for workers. It enforces the
// fail-closed rule: when the store cannot be reached, a task is never
// processed, because an unverifiable claim could mean a duplicate.
type Coordinator struct {
	store  taskstore.Store
	logger *slog.Logger
}

// New wraps the given store.
func New(store taskstore.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		store:  store,
		logger: logging.NewComponentLogger(logger, "coordinator"),
	}
}

// Claim attempts to take ownership of the task. A store failure is wrapped
// as unavailable so the broker retries delivery later instead of the worker
// guessing at the task's state.
func (c *Coordinator) Claim(ctx context.Context, taskID string, claim taskstore.Claim) (taskstore.ClaimOutcome, error) {
	outcome, err := c.store.Claim(ctx, taskID, claim)
	if err != nil {
		c.logger.Error("claim failed, refusing to process",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err))
		return outcome, services.Wrap(services.ErrUnavailable, "claiming", "store", "cannot verify ownership", err)
	}

	switch outcome {
	case taskstore.Claimed:
		c.logger.Info("task claimed",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldWorkerID, claim.WorkerID))
	case taskstore.ClaimAlreadyTaken:
		c.logger.Info("task already taken, skipping",
			logging.String(logging.FieldTaskID, taskID))
	case taskstore.ClaimNotFound:
		c.logger.Warn("task unknown to store, skipping",
			logging.String(logging.FieldTaskID, taskID))
	}
	return outcome, nil
}

// RecordTerminal writes the final outcome. On failure it reconnects the
// store once and retries, so a transient connection drop does not strand a
// finished task in the started status.
func (c *Coordinator) RecordTerminal(ctx context.Context, taskID string, terminal taskstore.Terminal) error {
	err := c.store.RecordTerminal(ctx, taskID, terminal)
	if err == nil {
		return nil
	}

	c.logger.Warn("terminal write failed, reconnecting store",
		logging.String(logging.FieldTaskID, taskID),
		logging.Error(err))

	if reconnectErr := c.store.Reconnect(ctx); reconnectErr != nil {
		return services.Wrap(services.ErrUnavailable, "finalizing", "store",
			fmt.Sprintf("terminal write failed and reconnect failed: %v", reconnectErr), err)
	}
	if retryErr := c.store.RecordTerminal(ctx, taskID, terminal); retryErr != nil {
		return services.Wrap(services.ErrUnavailable, "finalizing", "store", "terminal write failed after reconnect", retryErr)
	}

	c.logger.Info("terminal write succeeded after reconnect",
		logging.String(logging.FieldTaskID, taskID))
	return nil
}

// Lookup fetches the current record for a task.
func (c *Coordinator) Lookup(ctx context.Context, taskID string) (*taskstore.TaskRecord, error) {
	return c.store.Get(ctx, taskID)
}

// Complete records a successful outcome with the current time.
func (c *Coordinator) Complete(ctx context.Context, taskID string, result *taskstore.Result) error {
	return c.RecordTerminal(ctx, taskID, taskstore.Terminal{
		Status:  taskstore.StatusCompleted,
		Result:  result,
		EndTime: time.Now().Unix(),
	})
}

// Fail records a failed outcome with the current time.
func (c *Coordinator) Fail(ctx context.Context, taskID string, message string) error {
	return c.RecordTerminal(ctx, taskID, taskstore.Terminal{
		Status:       taskstore.StatusFailed,
		ErrorMessage: message,
		EndTime:      time.Now().Unix(),
	})
}
