package reports

import (
	"context"
	"log/slog"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// Invalidator drops cached reports. *Service satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidatingRecorder forwards activity entries to next and invalidates
// cached reports for each one. Services record activity only after their
// transaction commits, so every stock, order, delivery or payment change
// starts a new cache generation.
type InvalidatingRecorder struct {
	next   shared.ActivityRecorder
	cache  Invalidator
	logger *slog.Logger
}

func NewInvalidatingRecorder(next shared.ActivityRecorder, cache Invalidator, logger *slog.Logger) *InvalidatingRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidatingRecorder{next: next, cache: cache, logger: logger}
}

// Record invalidates first and then forwards. An invalidation failure is
// logged and leaves stale entries to expire through the cache TTL.
func (r *InvalidatingRecorder) Record(ctx context.Context, entry shared.ActivityEntry) error {
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("report cache invalidation failed",
				slog.String("action", entry.Action),
				slog.Any("error", err))
		}
	}
	if r.next == nil {
		return nil
	}
	return r.next.Record(ctx, entry)
}
