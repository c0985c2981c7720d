package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/agrodistri/agrodistri/jobs"
)

// Inspector is the slice of asynq.Inspector the CLI reads.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    jobs.Enqueuer
	inspector Inspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{client, inspector}}
}

// NewJobsCLIWith builds the helpers over explicit dependencies.
func NewJobsCLIWith(client jobs.Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	errs := make([]error, 0, len(c.closers))
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name with default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskLowStockScan:
		task = jobs.NewLowStockScanTask()
	case jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewIdempotencyCleanupTask(jobs.DefaultIdempotencyRetention)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string   `json:"queue"`
	Pending   int      `json:"pending"`
	Active    int      `json:"active"`
	Scheduled int      `json:"scheduled"`
	Retry     int      `json:"retry"`
	Archived  int      `json:"archived"`
	Upcoming  []string `json:"upcoming,omitempty"`
}

// InspectQueue reports the default queue and its next scheduled tasks.
func (c *JobsCLI) InspectQueue(ctx context.Context, upcoming int) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	if upcoming <= 0 {
		return stats, nil
	}
	tasks, err := c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(upcoming), asynq.Page(1))
	if err != nil {
		return QueueStats{}, err
	}
	for _, t := range tasks {
		stats.Upcoming = append(stats.Upcoming, fmt.Sprintf("%s@%s", t.Type, t.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z")))
	}
	return stats, nil
}

// JobsOptions defines flags for the jobs subcommands.
type JobsOptions struct {
	Name       string
	Upcoming   int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *JobsOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// TriggerCommand enqueues a job and prints the task id.
func (c *JobsCLI) TriggerCommand(ctx context.Context, opts JobsOptions) int {
	opts.defaults()
	if opts.Name == "" {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: job name required (%s, %s)\n", jobs.TaskLowStockScan, jobs.TaskIdempotencyCleanup)
		return 1
	}
	info, err := c.Trigger(ctx, opts.Name)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		_ = json.NewEncoder(opts.Stdout).Encode(map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return 0
}

// StatsCommand prints queue statistics.
func (c *JobsCLI) StatsCommand(ctx context.Context, opts JobsOptions) int {
	opts.defaults()
	stats, err := c.InspectQueue(ctx, opts.Upcoming)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	for _, u := range stats.Upcoming {
		_, _ = fmt.Fprintf(opts.Stdout, "  next %s\n", u)
	}
	return 0
}
