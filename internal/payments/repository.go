package payments

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
)

// Repository persists payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	ListPayments(ctx context.Context, orderID int64) ([]Payment, error)
	Orders() orders.TxRepository
	Stores() stores.TxRepository
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds payment statements to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{q: q}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

func (t *txRepo) Orders() orders.TxRepository { return orders.NewTxRepository(t.q) }

func (t *txRepo) Stores() stores.TxRepository { return stores.NewTxRepository(t.q) }

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var key *string
	if p.IdempotencyKey != "" {
		key = &p.IdempotencyKey
	}
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO payments (order_id, amount, payment_method, payment_date, notes,
		idempotency_key, created_by, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.OrderID, p.Amount, string(p.Method), p.PaymentDate, p.Notes, key, p.CreatedBy, p.CreatedAt).Scan(&id)
	if err != nil {
		if key != nil && db.IsUniqueViolation(err) {
			return 0, shared.ErrIdempotencyConflict
		}
		return 0, shared.Backend("insert payment", err)
	}
	return id, nil
}

func (t *txRepo) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	return listPayments(ctx, t.q, orderID)
}

func listPayments(ctx context.Context, q db.Querier, orderID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, amount, payment_method, payment_date, notes,
		COALESCE(idempotency_key, ''), created_by, created_at
		FROM payments WHERE order_id = $1 ORDER BY payment_date, id`, orderID)
	if err != nil {
		return nil, shared.Backend("list payments", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		var method string
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &method, &p.PaymentDate, &p.Notes,
			&p.IdempotencyKey, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, shared.Backend("scan payment", err)
		}
		p.Method = Method(method)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list payments", err)
	}
	return out, nil
}

// ListPayments lists the payments of an order, oldest first.
func (r *Repository) ListPayments(ctx context.Context, orderID int64) ([]Payment, error) {
	return listPayments(ctx, r.pool, orderID)
}

// GetOrder loads the order a payment belongs to.
func (r *Repository) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return orders.NewRepository(r.pool).GetOrder(ctx, id)
}
