package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Repository persists stores in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertStore(ctx context.Context, s Store) (int64, error)
	GetStoreForUpdate(ctx context.Context, id int64) (Store, error)
	UpdateStoreDebt(ctx context.Context, id int64, debt decimal.Decimal, at time.Time) error
	UpsertCustomPrice(ctx context.Context, cp CustomPrice) error
	GetCustomPrices(ctx context.Context, storeID int64) (map[int64]decimal.Decimal, error)
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds store statements to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{q: q}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const storeColumns = `id, name, owner, phone, address, region, debt, is_active, created_at, updated_at`

func scanStore(row pgx.Row) (Store, error) {
	var s Store
	err := row.Scan(&s.ID, &s.Name, &s.Owner, &s.Phone, &s.Address, &s.Region, &s.Debt, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, fmt.Errorf("store: %w", shared.ErrNotFound)
		}
		return Store{}, shared.Backend("scan store", err)
	}
	return s, nil
}

func (t *txRepo) InsertStore(ctx context.Context, s Store) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO stores (name, owner, phone, address, region, debt, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $7) RETURNING id`,
		s.Name, s.Owner, s.Phone, s.Address, s.Region, s.IsActive, s.CreatedAt).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert store", err)
	}
	return id, nil
}

func (t *txRepo) GetStoreForUpdate(ctx context.Context, id int64) (Store, error) {
	s, err := scanStore(t.q.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Store{}, fmt.Errorf("store %d: %w", id, err)
	}
	return s, nil
}

func (t *txRepo) UpdateStoreDebt(ctx context.Context, id int64, debt decimal.Decimal, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE stores SET debt = $2, updated_at = $3 WHERE id = $1`, id, debt, at)
	if err != nil {
		return shared.Backend("update store debt", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) UpsertCustomPrice(ctx context.Context, cp CustomPrice) error {
	_, err := t.q.Exec(ctx, `INSERT INTO store_prices (store_id, product_id, price, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (store_id, product_id) DO UPDATE SET price = EXCLUDED.price, updated_at = EXCLUDED.updated_at`,
		cp.StoreID, cp.ProductID, cp.Price, cp.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("product %d: %w", cp.ProductID, shared.ErrNotFound)
		}
		return shared.Backend("upsert store price", err)
	}
	return nil
}

func (t *txRepo) GetCustomPrices(ctx context.Context, storeID int64) (map[int64]decimal.Decimal, error) {
	prices, err := listCustomPrices(ctx, t.q, storeID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal, len(prices))
	for _, p := range prices {
		out[p.ProductID] = p.Price
	}
	return out, nil
}

func listCustomPrices(ctx context.Context, q db.Querier, storeID int64) ([]CustomPrice, error) {
	rows, err := q.Query(ctx, `SELECT store_id, product_id, price, updated_at FROM store_prices WHERE store_id = $1 ORDER BY product_id`, storeID)
	if err != nil {
		return nil, shared.Backend("list store prices", err)
	}
	defer rows.Close()
	var out []CustomPrice
	for rows.Next() {
		var cp CustomPrice
		if err := rows.Scan(&cp.StoreID, &cp.ProductID, &cp.Price, &cp.UpdatedAt); err != nil {
			return nil, shared.Backend("scan store price", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list store prices", err)
	}
	return out, nil
}

// GetStore loads one store.
func (r *Repository) GetStore(ctx context.Context, id int64) (Store, error) {
	s, err := scanStore(r.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if err != nil {
		return Store{}, fmt.Errorf("store %d: %w", id, err)
	}
	return s, nil
}

// ListStores lists stores ordered by name.
func (r *Repository) ListStores(ctx context.Context, filter StoreFilter) ([]Store, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Region != "" {
		args = append(args, filter.Region)
		conds = append(conds, fmt.Sprintf("region = $%d", len(args)))
	}
	if filter.WithDebt {
		conds = append(conds, "debt > 0")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR owner ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + storeColumns + ` FROM stores`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Backend("list stores", err)
	}
	defer rows.Close()
	var out []Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list stores", err)
	}
	return out, nil
}

// ListCustomPrices returns the store's price overrides.
func (r *Repository) ListCustomPrices(ctx context.Context, storeID int64) ([]CustomPrice, error) {
	return listCustomPrices(ctx, r.pool, storeID)
}
