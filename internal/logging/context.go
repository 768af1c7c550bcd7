package logging

import (
	"context"
	"log/slog"

	"scribe/internal/services"
)

// Canonical attribute keys shared across the daemon so log lines stay
// greppable regardless of which component emitted them.
const (
	FieldComponent = "component"
	FieldTaskID    = "task_id"
	FieldStage     = "stage"
	FieldWorkerID  = "worker_id"
	FieldEventType = "event_type"
	FieldDuration  = "duration"
	FieldURL       = "url"
)

// ContextFields collects task, stage, and worker annotations from ctx as
// log attributes.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]Attr, 0, 3)
	if id, ok := services.TaskIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldTaskID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldStage, stage))
	}
	if worker, ok := services.WorkerIDFromContext(ctx); ok {
		attrs = append(attrs, slog.String(FieldWorkerID, worker))
	}
	return attrs
}

// WithContext returns logger pre-populated with any annotations on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, attr := range fields {
		args = append(args, attr)
	}
	return logger.With(args...)
}
