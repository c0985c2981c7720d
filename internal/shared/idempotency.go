package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// IdempotencyGuard reserves request keys per module.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// MaxIdempotencyKeyLen bounds client supplied keys.
const MaxIdempotencyKeyLen = 128

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	db  execer
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db execer) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if err := validateIdempotencyKey(key, module); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return Backend("idempotency insert", err)
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, Backend("idempotency cleanup", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return NewValidationError("idempotency_key", "required")
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}

func validateIdempotencyKey(key, module string) error {
	if key == "" {
		return NewValidationError("idempotency_key", "required")
	}
	if len(key) > MaxIdempotencyKeyLen {
		return NewValidationError("idempotency_key", fmt.Sprintf("must be at most %d characters", MaxIdempotencyKeyLen))
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	return nil
}
