package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agrodistri/agrodistri/internal/jobs"
)

// KeyPurger deletes idempotency keys older than a cutoff.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob trims the idempotency_keys table.
type IdempotencyCleanupJob struct {
	Store   KeyPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle removes expired keys. An empty payload uses the default retention.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := DefaultIdempotencyRetention
	if len(t.Payload()) > 0 {
		var payload CleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup: decode: %v: %w", err, asynq.SkipRetry)
		}
		if payload.RetentionHours > 0 {
			retention = time.Duration(payload.RetentionHours) * time.Hour
		}
	}

	logger := jobLogger(j.Logger, TaskIdempotencyCleanup)
	return j.Metrics.Run(TaskIdempotencyCleanup, func() error {
		removed, err := j.Store.Cleanup(ctx, retention)
		if err != nil {
			logger.Error("cleanup failed", slog.Any("error", err))
			return err
		}
		j.Metrics.AddPurgedKeys(removed)
		logger.Info("idempotency keys purged",
			slog.Int64("removed", removed),
			slog.Duration("retention", retention))
		return nil
	})
}
