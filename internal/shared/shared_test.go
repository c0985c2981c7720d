package shared

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, SystemActor, ActorFromContext(ctx))
	ctx = ContextWithActor(ctx, "admin-1")
	assert.Equal(t, "admin-1", ActorFromContext(ctx))
}

func TestDocNumber(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "ORD-1700000000123", DocNumber(OrderPrefix, at))
	assert.Equal(t, "DEL-1700000000123", DocNumber(DeliveryPrefix, at))
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 1000, 450)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 400, p.Offset())
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, ActivityEntry) error {
	f.calls++
	return errors.New("queue down")
}

func TestRecordActivitySwallowsFailures(t *testing.T) {
	rec := &failingRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := ContextWithActor(context.Background(), "op")

	entry := NewActivity(ctx, "order.created", "order", 9, map[string]any{"total": "200"})
	require.NotEmpty(t, entry.ID)
	require.Equal(t, "op", entry.Actor)

	RecordActivity(ctx, rec, logger, entry)
	RecordActivity(ctx, nil, logger, entry)
	require.Equal(t, 1, rec.calls)
}

func TestValidateIdempotencyKey(t *testing.T) {
	require.ErrorIs(t, validateIdempotencyKey("", "payments"), ErrValidation)
	long := make([]byte, MaxIdempotencyKeyLen+1)
	for i := range long {
		long[i] = 'k'
	}
	require.ErrorIs(t, validateIdempotencyKey(string(long), "payments"), ErrValidation)
	require.NoError(t, validateIdempotencyKey("abc", "payments"))
}
