package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the stock ledger.
type TxRepository interface {
	InsertProduct(ctx context.Context, p Product) (int64, error)
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	UpdateProductStock(ctx context.Context, id int64, stock int, at time.Time) error
	InsertStockLog(ctx context.Context, log StockLog) (int64, error)
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds the inventory statements to q, usually an open
// transaction owned by another package's unit of work.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{q: q}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const productColumns = `id, name, type, unit, stock, min_stock, cost_price, selling_price, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Unit, &p.Stock, &p.MinStock,
		&p.CostPrice, &p.SellingPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("product: %w", shared.ErrNotFound)
		}
		return Product{}, shared.Backend("scan product", err)
	}
	return p, nil
}

func (t *txRepo) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO products (name, type, unit, stock, min_stock, cost_price, selling_price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, $8) RETURNING id`,
		p.Name, p.Type, p.Unit, p.MinStock, p.CostPrice, p.SellingPrice, p.IsActive, p.CreatedAt).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert product", err)
	}
	return id, nil
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	row := t.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, fmt.Errorf("product %d: %w", id, err)
	}
	return p, nil
}

func (t *txRepo) UpdateProductStock(ctx context.Context, id int64, stock int, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`, id, stock, at)
	if err != nil {
		return shared.Backend("update product stock", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) InsertStockLog(ctx context.Context, log StockLog) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO stock_logs (product_id, type, quantity, stock_before, stock_after, reference_type, reference_id, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), $8, $9, $10) RETURNING id`,
		log.ProductID, string(log.Type), log.Quantity, log.StockBefore, log.StockAfter,
		log.ReferenceType, log.ReferenceID, log.Notes, log.CreatedBy, log.CreatedAt).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert stock log", err)
	}
	return id, nil
}

// GetProduct loads a single product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return Product{}, fmt.Errorf("product %d: %w", id, err)
	}
	return p, nil
}

// ListProducts returns products matching filter ordered by name.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}
	if filter.LowStockOnly {
		conds = append(conds, "stock < min_stock")
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR type ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + productColumns + ` FROM products`
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
		return nil, shared.Backend("list products", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list products", err)
	}
	return out, nil
}

// ListStockLogs returns the most recent log rows of a product, newest first.
func (r *Repository) ListStockLogs(ctx context.Context, productID int64, limit int) ([]StockLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, type, quantity, stock_before, stock_after,
		reference_type, COALESCE(reference_id, 0), notes, created_by, created_at
		FROM stock_logs WHERE product_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, shared.Backend("list stock logs", err)
	}
	defer rows.Close()
	var out []StockLog
	for rows.Next() {
		var l StockLog
		var typ string
		if err := rows.Scan(&l.ID, &l.ProductID, &typ, &l.Quantity, &l.StockBefore, &l.StockAfter,
			&l.ReferenceType, &l.ReferenceID, &l.Notes, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, shared.Backend("scan stock log", err)
		}
		l.Type = LogType(typ)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list stock logs", err)
	}
	return out, nil
}
