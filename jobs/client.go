package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// Enqueuer is the slice of asynq.Client used by producers.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues onto QueueDefault unless the caller passes asynq.Queue.
type Client struct {
	inner *asynq.Client
}

func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{inner: asynq.NewClient(redisOpts)}
}

func (c *Client) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.inner.EnqueueContext(ctx, task, append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)...)
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// ActivityQueue is a shared.ActivityRecorder that hands entries to the
// worker instead of writing them inline.
type ActivityQueue struct {
	enqueuer Enqueuer
}

func NewActivityQueue(enqueuer Enqueuer) *ActivityQueue {
	return &ActivityQueue{enqueuer: enqueuer}
}

// Record enqueues entry. Payload validation happens in ActivitySinkJob.
func (q *ActivityQueue) Record(ctx context.Context, entry shared.ActivityEntry) error {
	if q == nil || q.enqueuer == nil {
		return errors.New("jobs: activity queue not configured")
	}
	task, err := NewActivityTask(entry)
	if err != nil {
		return err
	}
	if _, err := q.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("jobs: enqueue %s: %w", entry.Action, err)
	}
	return nil
}
