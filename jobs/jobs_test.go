package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodistri/agrodistri/internal/inventory"
	jobmetrics "github.com/agrodistri/agrodistri/internal/jobs"
	"github.com/agrodistri/agrodistri/internal/shared"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueDefault, Type: task.Type()}, nil
}

type memoryActivity struct {
	entries []shared.ActivityEntry
	err     error
}

func (m *memoryActivity) Record(_ context.Context, e shared.ActivityEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func TestActivityQueueFeedsSink(t *testing.T) {
	enq := &captureEnqueuer{}
	queue := NewActivityQueue(enq)
	ctx := shared.ContextWithActor(context.Background(), "7")
	entry := shared.NewActivity(ctx, "order.created", "order", 42, map[string]any{"total": "200"})

	require.NoError(t, queue.Record(ctx, entry))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskActivityRecord, enq.tasks[0].Type())

	store := &memoryActivity{}
	sink := NewActivitySinkJob(store, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, sink.Handle(ctx, enq.tasks[0]))
	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "7", got.Actor)
	assert.Equal(t, int64(42), got.EntityID)
	assert.Equal(t, "200", got.Meta["total"])
}

func TestActivityQueueSurfacesEnqueueError(t *testing.T) {
	redisDown := errors.New("redis down")
	queue := NewActivityQueue(&captureEnqueuer{err: redisDown})
	err := queue.Record(context.Background(), shared.ActivityEntry{Action: "order.created", Entity: "order"})
	require.ErrorIs(t, err, redisDown)
	assert.ErrorContains(t, err, "order.created")

	var nilQueue *ActivityQueue
	require.Error(t, nilQueue.Record(context.Background(), shared.ActivityEntry{}))
}

func TestActivitySinkRejectsBadPayload(t *testing.T) {
	sink := NewActivitySinkJob(&memoryActivity{}, quiet, nil)

	err := sink.Handle(context.Background(), asynq.NewTask(TaskActivityRecord, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(shared.ActivityEntry{Entity: "order"})
	err = sink.Handle(context.Background(), asynq.NewTask(TaskActivityRecord, payload))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestActivitySinkRetriesStoreFailure(t *testing.T) {
	boom := errors.New("insert failed")
	sink := NewActivitySinkJob(&memoryActivity{err: boom}, quiet, nil)
	task, err := NewActivityTask(shared.ActivityEntry{Action: "a", Entity: "b"})
	require.NoError(t, err)

	err = sink.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

type staticLowStock struct {
	products []inventory.Product
	err      error
}

func (s staticLowStock) LowStock(context.Context) ([]inventory.Product, error) {
	return s.products, s.err
}

func TestLowStockScan(t *testing.T) {
	job := NewLowStockScanJob(staticLowStock{products: []inventory.Product{
		{ID: 1, Name: "Urea", Stock: 2, MinStock: 10},
		{ID: 2, Name: "NPK", Stock: 0, MinStock: 5},
	}}, quiet, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewLowStockScanTask()))

	boom := errors.New("query failed")
	failing := NewLowStockScanJob(staticLowStock{err: boom}, quiet, nil)
	require.ErrorIs(t, failing.Handle(context.Background(), NewLowStockScanTask()), boom)

	var unset *LowStockScanJob
	require.Error(t, unset.Handle(context.Background(), NewLowStockScanTask()))
}

type recordingPurger struct {
	got     time.Duration
	removed int64
}

func (p *recordingPurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.got = olderThan
	return p.removed, nil
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	purger := &recordingPurger{removed: 3}
	job := NewIdempotencyCleanupJob(purger, quiet, nil)

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, purger.got)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, DefaultIdempotencyRetention, purger.got)

	task, err = NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, DefaultIdempotencyRetention, purger.got)

	err = job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHealthEndpoint(t *testing.T) {
	cases := []struct {
		name    string
		inspect QueueInspector
		status  int
		pending int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspect: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4}}, status: http.StatusOK, pending: 4},
		{name: "redis error", inspect: fakeInspector{err: errors.New("dial")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspect, quiet).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}
