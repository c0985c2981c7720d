package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agrodistri/agrodistri/internal/jobs"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// ActivitySinkJob persists queued activity entries.
type ActivitySinkJob struct {
	Store   shared.ActivityRecorder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewActivitySinkJob initialises the activity sink handler.
func NewActivitySinkJob(store shared.ActivityRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivitySinkJob {
	return &ActivitySinkJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle decodes one entry and writes it. Malformed payloads are not retried.
func (j *ActivitySinkJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("activity sink: handler not configured")
	}
	var entry shared.ActivityEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("activity sink: decode: %v: %w", err, asynq.SkipRetry)
	}
	if entry.Action == "" || entry.Entity == "" {
		return fmt.Errorf("activity sink: incomplete entry: %w", asynq.SkipRetry)
	}

	return j.Metrics.Run(TaskActivityRecord, func() error {
		if err := j.Store.Record(ctx, entry); err != nil {
			jobLogger(j.Logger, TaskActivityRecord).Warn("activity insert failed",
				slog.String("id", entry.ID),
				slog.String("action", entry.Action),
				slog.Any("error", err))
			return err
		}
		return nil
	})
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
