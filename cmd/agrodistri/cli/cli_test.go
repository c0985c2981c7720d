package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrodistri/agrodistri/jobs"
)

type stubEnqueuer struct {
	types []string
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.types = append(s.types, task.Type())
	return &asynq.TaskInfo{ID: "abc", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
	err       error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.scheduled, nil
}

func TestTriggerCommand(t *testing.T) {
	enq := &stubEnqueuer{}
	c := NewJobsCLIWith(enq, nil)

	var out, errOut bytes.Buffer
	code := c.TriggerCommand(context.Background(), JobsOptions{Name: jobs.TaskLowStockScan, Stdout: &out, Stderr: &errOut})
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "enqueued inventory:low_stock_scan as abc")

	out.Reset()
	code = c.TriggerCommand(context.Background(), JobsOptions{Name: jobs.TaskIdempotencyCleanup, JSONOutput: true, Stdout: &out, Stderr: &errOut})
	require.Equal(t, 0, code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, jobs.TaskIdempotencyCleanup, payload["type"])
	assert.Equal(t, []string{jobs.TaskLowStockScan, jobs.TaskIdempotencyCleanup}, enq.types)

	errOut.Reset()
	assert.Equal(t, 1, c.TriggerCommand(context.Background(), JobsOptions{Name: "mail:send", Stdout: &out, Stderr: &errOut}))
	assert.Contains(t, errOut.String(), "unsupported job")
	assert.Equal(t, 1, c.TriggerCommand(context.Background(), JobsOptions{Stdout: &out, Stderr: &errOut}))
}

func TestStatsCommand(t *testing.T) {
	next := time.Date(2026, 10, 20, 6, 0, 0, 0, time.UTC)
	c := NewJobsCLIWith(nil, stubInspector{
		info:      &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 2, Scheduled: 1},
		scheduled: []*asynq.TaskInfo{{Type: jobs.TaskLowStockScan, NextProcessAt: next}},
	})

	var out, errOut bytes.Buffer
	require.Equal(t, 0, c.StatsCommand(context.Background(), JobsOptions{Upcoming: 5, Stdout: &out, Stderr: &errOut}))
	assert.Contains(t, out.String(), "pending=2")
	assert.Contains(t, out.String(), "next inventory:low_stock_scan@2026-10-20T06:00:00Z")

	failing := NewJobsCLIWith(nil, stubInspector{err: errors.New("dial tcp")})
	assert.Equal(t, 1, failing.StatsCommand(context.Background(), JobsOptions{Stdout: &out, Stderr: &errOut}))
	assert.Contains(t, errOut.String(), "dial tcp")
}

func TestHashTokenCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	token := "a-long-enough-api-token"
	code := HashTokenCommand(TokenOptions{Cost: bcrypt.MinCost, Stdin: strings.NewReader(token + "\n"), Stdout: &out, Stderr: &errOut})
	require.Equal(t, 0, code, errOut.String())
	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)))

	assert.Equal(t, 1, HashTokenCommand(TokenOptions{Stdin: strings.NewReader("short"), Stdout: &out, Stderr: &errOut}))
}
