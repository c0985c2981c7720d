package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// Source runs the report queries.
type Source interface {
	SalesByMethod(ctx context.Context, from, to time.Time) ([]SalesRow, error)
	OutstandingDebts(ctx context.Context) ([]DebtRow, error)
	StockLevels(ctx context.Context) ([]StockRow, error)
	DeliveriesByStatus(ctx context.Context, from, to time.Time) ([]DeliveryRow, error)
}

// Repository reads report data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesByMethod sums non-cancelled orders created within [from, to].
func (r *Repository) SalesByMethod(ctx context.Context, from, to time.Time) ([]SalesRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT payment_method, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2
		GROUP BY payment_method ORDER BY payment_method`, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, shared.Backend("report sales", err)
	}
	defer rows.Close()
	var out []SalesRow
	for rows.Next() {
		var row SalesRow
		if err := rows.Scan(&row.PaymentMethod, &row.Orders, &row.Total); err != nil {
			return nil, shared.Backend("scan sales row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("report sales", err)
	}
	return out, nil
}

// OutstandingDebts lists stores with positive debt.
func (r *Repository) OutstandingDebts(ctx context.Context) ([]DebtRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, region, debt FROM stores
		WHERE debt > 0 ORDER BY debt DESC, name`)
	if err != nil {
		return nil, shared.Backend("report debts", err)
	}
	defer rows.Close()
	var out []DebtRow
	for rows.Next() {
		var row DebtRow
		if err := rows.Scan(&row.StoreID, &row.Name, &row.Region, &row.Debt); err != nil {
			return nil, shared.Backend("scan debt row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("report debts", err)
	}
	return out, nil
}

// StockLevels lists active products.
func (r *Repository) StockLevels(ctx context.Context) ([]StockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit, stock, min_stock FROM products
		WHERE is_active ORDER BY name, id`)
	if err != nil {
		return nil, shared.Backend("report stock", err)
	}
	defer rows.Close()
	var out []StockRow
	for rows.Next() {
		var row StockRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Unit, &row.Stock, &row.MinStock); err != nil {
			return nil, shared.Backend("scan stock row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("report stock", err)
	}
	return out, nil
}

// DeliveriesByStatus counts deliveries dated within [from, to].
func (r *Repository) DeliveriesByStatus(ctx context.Context, from, to time.Time) ([]DeliveryRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total_sacks), 0)
		FROM deliveries WHERE delivery_date BETWEEN $1 AND $2
		GROUP BY status ORDER BY status`, from, to)
	if err != nil {
		return nil, shared.Backend("report deliveries", err)
	}
	defer rows.Close()
	var out []DeliveryRow
	for rows.Next() {
		var row DeliveryRow
		if err := rows.Scan(&row.Status, &row.Deliveries, &row.Sacks); err != nil {
			return nil, shared.Backend("scan delivery row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("report deliveries", err)
	}
	return out, nil
}
