package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ActivityEntry is one best-effort "who did what" record.
type ActivityEntry struct {
	ID       string         `json:"id"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID int64          `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// ActivityRecorder accepts activity entries.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

// NewActivity fills the id, actor and timestamp of an entry.
func NewActivity(ctx context.Context, action, entity string, entityID int64, meta map[string]any) ActivityEntry {
	return ActivityEntry{
		ID:       uuid.NewString(),
		Actor:    ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       time.Now().UTC(),
	}
}

// RecordActivity hands the entry to rec and only logs a failure.
func RecordActivity(ctx context.Context, rec ActivityRecorder, logger *slog.Logger, entry ActivityEntry) {
	if rec == nil {
		return
	}
	if err := rec.Record(ctx, entry); err != nil && logger != nil {
		logger.Warn("activity log failed",
			slog.String("action", entry.Action),
			slog.String("entity", entry.Entity),
			slog.Int64("entity_id", entry.EntityID),
			slog.Any("error", err))
	}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ActivityLogger writes records into activity_logs.
type ActivityLogger struct {
	db execer
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(db execer) *ActivityLogger {
	return &ActivityLogger{db: db}
}

// Record persists the entry.
func (l *ActivityLogger) Record(ctx context.Context, entry ActivityEntry) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" {
		return errors.New("activity log requires action/entity")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `INSERT INTO activity_logs (id, actor, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Actor, entry.Action, entry.Entity, entry.EntityID, metaJSON, entry.At)
	return err
}
