package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
)

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Stock and Stores share the
// same transaction so ledger writes commit or roll back with the order.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderItem(ctx context.Context, item Item) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	ListOrderItems(ctx context.Context, orderIDs []int64) ([]Item, error)
	UpdateOrder(ctx context.Context, o Order) error
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
	Stock() inventory.TxRepository
	Stores() stores.TxRepository
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds order statements to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{q: q}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

func (t *txRepo) Stock() inventory.TxRepository { return inventory.NewTxRepository(t.q) }

func (t *txRepo) Stores() stores.TxRepository { return stores.NewTxRepository(t.q) }

const orderColumns = `id, order_number, store_id, total_amount, status, payment_method, payment_status,
	due_date, notes, cancel_reason, stock_deducted, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                       Order
		status, method, payment string
	)
	err := row.Scan(&o.ID, &o.Number, &o.StoreID, &o.TotalAmount, &status, &method, &payment,
		&o.DueDate, &o.Notes, &o.CancelReason, &o.StockDeducted, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("order: %w", shared.ErrNotFound)
		}
		return Order{}, shared.Backend("scan order", err)
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(method)
	o.PaymentStatus = PaymentStatus(payment)
	return o, nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO orders (order_number, store_id, total_amount, status, payment_method, payment_status,
		due_date, notes, cancel_reason, stock_deducted, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10, $11, $11) RETURNING id`,
		o.Number, o.StoreID, o.TotalAmount, string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		o.DueDate, o.Notes, o.StockDeducted, o.CreatedBy, o.CreatedAt).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert order", err)
	}
	return id, nil
}

func (t *txRepo) InsertOrderItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.Price, item.Subtotal).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert order item", err)
	}
	return id, nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, fmt.Errorf("order %d: %w", id, err)
	}
	return o, nil
}

func (t *txRepo) ListOrderItems(ctx context.Context, orderIDs []int64) ([]Item, error) {
	return listItems(ctx, t.q, orderIDs)
}

func (t *txRepo) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := t.q.Exec(ctx, `UPDATE orders SET status = $2, payment_status = $3, cancel_reason = $4,
		stock_deducted = $5, updated_at = $6 WHERE id = $1`,
		o.ID, string(o.Status), string(o.PaymentStatus), o.CancelReason, o.StockDeducted, o.UpdatedAt)
	if err != nil {
		return shared.Backend("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", o.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	return sumPayments(ctx, t.q, orderID)
}

func listItems(ctx context.Context, q db.Querier, orderIDs []int64) ([]Item, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, quantity, price, subtotal
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`, orderIDs)
	if err != nil {
		return nil, shared.Backend("list order items", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Subtotal); err != nil {
			return nil, shared.Backend("scan order item", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list order items", err)
	}
	return out, nil
}

func sumPayments(ctx context.Context, q db.Querier, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1`, orderID).Scan(&total); err != nil {
		return decimal.Zero, shared.Backend("sum payments", err)
	}
	return total, nil
}

// GetOrder loads one order without items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, fmt.Errorf("order %d: %w", id, err)
	}
	return o, nil
}

// ListOrderItems loads the items of the given orders.
func (r *Repository) ListOrderItems(ctx context.Context, orderIDs []int64) ([]Item, error) {
	return listItems(ctx, r.pool, orderIDs)
}

// SumPayments totals the payments of an order.
func (r *Repository) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	return sumPayments(ctx, r.pool, orderID)
}

// ListOrders returns a page of orders, newest first, and the total count.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.StoreID != 0 {
		args = append(args, filter.StoreID)
		conds = append(conds, fmt.Sprintf("store_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, shared.Backend("count orders", err)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Backend("list orders", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Backend("list orders", err)
	}
	return out, total, nil
}
