// Package settings keeps string-keyed presentation preferences such as the
// theme, sidebar width and business branding.
package settings

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// MaxValueLen bounds stored values.
const MaxValueLen = 4096

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)

// Setting is one key/value pair.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RepositoryPort persists settings.
type RepositoryPort interface {
	Get(ctx context.Context, key string) (Setting, error)
	Upsert(ctx context.Context, s Setting) error
	All(ctx context.Context) ([]Setting, error)
}

// Service validates keys and values.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ValidateKey checks the key shape.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return shared.NewValidationError("key", "must match "+keyPattern.String())
	}
	return nil
}

// Get returns one setting.
func (s *Service) Get(ctx context.Context, key string) (Setting, error) {
	if err := ValidateKey(key); err != nil {
		return Setting{}, err
	}
	return s.repo.Get(ctx, key)
}

// Set stores value under key, replacing any previous value.
func (s *Service) Set(ctx context.Context, key, value string) (Setting, error) {
	if err := ValidateKey(key); err != nil {
		return Setting{}, err
	}
	if len(value) > MaxValueLen {
		return Setting{}, shared.NewValidationError("value", fmt.Sprintf("must be at most %d bytes", MaxValueLen))
	}
	setting := Setting{
		Key:       key,
		Value:     strings.TrimSpace(value),
		UpdatedBy: shared.ActorFromContext(ctx),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return Setting{}, err
	}
	return setting, nil
}

// All returns every setting ordered by key.
func (s *Service) All(ctx context.Context) ([]Setting, error) {
	return s.repo.All(ctx)
}

// Repository stores settings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads one setting.
func (r *Repository) Get(ctx context.Context, key string) (Setting, error) {
	var st Setting
	err := r.pool.QueryRow(ctx, `SELECT key, value, updated_by, updated_at FROM settings WHERE key = $1`, key).
		Scan(&st.Key, &st.Value, &st.UpdatedBy, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Setting{}, fmt.Errorf("setting %q: %w", key, shared.ErrNotFound)
		}
		return Setting{}, shared.Backend("get setting", err)
	}
	return st, nil
}

// Upsert inserts or replaces a setting.
func (r *Repository) Upsert(ctx context.Context, s Setting) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO settings (key, value, updated_by, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		s.Key, s.Value, s.UpdatedBy, s.UpdatedAt)
	if err != nil {
		return shared.Backend("upsert setting", err)
	}
	return nil
}

// All lists settings by key.
func (r *Repository) All(ctx context.Context) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_by, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, shared.Backend("list settings", err)
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedBy, &st.UpdatedAt); err != nil {
			return nil, shared.Backend("scan setting", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list settings", err)
	}
	return out, nil
}
