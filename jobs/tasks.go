package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/agrodistri/agrodistri/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	TaskActivityRecord     = "activity:record"
	TaskLowStockScan       = "inventory:low_stock_scan"
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// DefaultIdempotencyRetention is how long processed keys are kept.
const DefaultIdempotencyRetention = 7 * 24 * time.Hour

// CleanupPayload configures one idempotency cleanup run.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewActivityTask wraps an activity entry for the worker.
func NewActivityTask(entry shared.ActivityEntry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal activity: %w", err)
	}
	return asynq.NewTask(TaskActivityRecord, data, asynq.MaxRetry(3)), nil
}

// NewLowStockScanTask builds the periodic low-stock scan.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil, asynq.MaxRetry(1))
}

// NewIdempotencyCleanupTask builds a cleanup task for keys older than retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	data, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.MaxRetry(1)), nil
}
