package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// Repository provides PostgreSQL backed persistence for deliveries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertDelivery(ctx context.Context, d Delivery) (int64, error)
	InsertStop(ctx context.Context, s Stop) error
	InsertWorker(ctx context.Context, w Worker) error
	GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error)
	ListStops(ctx context.Context, deliveryID int64) ([]Stop, error)
	ListWorkers(ctx context.Context, deliveryID int64) ([]Worker, error)
	UpdateDelivery(ctx context.Context, d Delivery) error
	UpdateStop(ctx context.Context, s Stop) error
	UpdateWorker(ctx context.Context, w Worker) error
	Orders() orders.TxRepository
	Stock() inventory.TxRepository
	Employees() employees.TxRepository
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds delivery statements to q.
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

func (t *txRepo) Stock() inventory.TxRepository { return inventory.NewTxRepository(t.q) }

func (t *txRepo) Employees() employees.TxRepository { return employees.NewTxRepository(t.q) }

// ============================================================================
// DELIVERY OPERATIONS
// ============================================================================

const deliveryColumns = `id, delivery_number, delivery_date, driver_id, truck_number, route_notes, status,
	total_orders, total_sacks, cancel_reason, started_at, completed_at, cancelled_at, created_by, created_at, updated_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	var status string
	err := row.Scan(&d.ID, &d.Number, &d.DeliveryDate, &d.DriverID, &d.TruckNumber, &d.RouteNotes, &status,
		&d.TotalOrders, &d.TotalSacks, &d.CancelReason, &d.StartedAt, &d.CompletedAt, &d.CancelledAt,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, fmt.Errorf("delivery: %w", shared.ErrNotFound)
		}
		return Delivery{}, shared.Backend("scan delivery", err)
	}
	d.Status = Status(status)
	return d, nil
}

func (t *txRepo) InsertDelivery(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO deliveries (delivery_number, delivery_date, driver_id, truck_number, route_notes,
		status, total_orders, total_sacks, cancel_reason, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10, $10) RETURNING id`,
		d.Number, d.DeliveryDate, d.DriverID, d.TruckNumber, d.RouteNotes, string(d.Status),
		d.TotalOrders, d.TotalSacks, d.CreatedBy, d.CreatedAt).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert delivery", err)
	}
	return id, nil
}

func (t *txRepo) InsertStop(ctx context.Context, s Stop) error {
	_, err := t.q.Exec(ctx, `INSERT INTO delivery_orders (delivery_id, order_id, route_order, delivery_status, stock_deducted)
		VALUES ($1, $2, $3, $4, $5)`,
		s.DeliveryID, s.OrderID, s.RouteOrder, string(s.Status), s.StockDeducted)
	if err != nil {
		return shared.Backend("insert delivery stop", err)
	}
	return nil
}

func (t *txRepo) InsertWorker(ctx context.Context, w Worker) error {
	_, err := t.q.Exec(ctx, `INSERT INTO delivery_workers (delivery_id, employee_id, sacks_loaded, wage_earned)
		VALUES ($1, $2, $3, $4)`, w.DeliveryID, w.EmployeeID, w.SacksLoaded, w.WageEarned)
	if err != nil {
		return shared.Backend("insert delivery worker", err)
	}
	return nil
}

func (t *txRepo) GetDeliveryForUpdate(ctx context.Context, id int64) (Delivery, error) {
	d, err := scanDelivery(t.q.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Delivery{}, fmt.Errorf("delivery %d: %w", id, err)
	}
	return d, nil
}

func (t *txRepo) ListStops(ctx context.Context, deliveryID int64) ([]Stop, error) {
	return listStops(ctx, t.q, deliveryID)
}

func (t *txRepo) ListWorkers(ctx context.Context, deliveryID int64) ([]Worker, error) {
	return listWorkers(ctx, t.q, deliveryID)
}

func (t *txRepo) UpdateDelivery(ctx context.Context, d Delivery) error {
	tag, err := t.q.Exec(ctx, `UPDATE deliveries SET status = $2, cancel_reason = $3, started_at = $4,
		completed_at = $5, cancelled_at = $6, updated_at = $7 WHERE id = $1`,
		d.ID, string(d.Status), d.CancelReason, d.StartedAt, d.CompletedAt, d.CancelledAt, d.UpdatedAt)
	if err != nil {
		return shared.Backend("update delivery", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery %d: %w", d.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) UpdateStop(ctx context.Context, s Stop) error {
	tag, err := t.q.Exec(ctx, `UPDATE delivery_orders SET route_order = $3, delivery_status = $4, stock_deducted = $5,
		delivered_at = $6, recipient_name = $7 WHERE delivery_id = $1 AND order_id = $2`,
		s.DeliveryID, s.OrderID, s.RouteOrder, string(s.Status), s.StockDeducted, s.DeliveredAt, s.RecipientName)
	if err != nil {
		return shared.Backend("update delivery stop", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery %d stop for order %d: %w", s.DeliveryID, s.OrderID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) UpdateWorker(ctx context.Context, w Worker) error {
	_, err := t.q.Exec(ctx, `UPDATE delivery_workers SET sacks_loaded = $3, wage_earned = $4
		WHERE delivery_id = $1 AND employee_id = $2`, w.DeliveryID, w.EmployeeID, w.SacksLoaded, w.WageEarned)
	if err != nil {
		return shared.Backend("update delivery worker", err)
	}
	return nil
}

func listStops(ctx context.Context, q db.Querier, deliveryID int64) ([]Stop, error) {
	rows, err := q.Query(ctx, `SELECT delivery_id, order_id, route_order, delivery_status, stock_deducted, delivered_at, recipient_name
		FROM delivery_orders WHERE delivery_id = $1 ORDER BY route_order`, deliveryID)
	if err != nil {
		return nil, shared.Backend("list delivery stops", err)
	}
	defer rows.Close()
	var out []Stop
	for rows.Next() {
		var s Stop
		var status string
		if err := rows.Scan(&s.DeliveryID, &s.OrderID, &s.RouteOrder, &status, &s.StockDeducted, &s.DeliveredAt, &s.RecipientName); err != nil {
			return nil, shared.Backend("scan delivery stop", err)
		}
		s.Status = orders.Status(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list delivery stops", err)
	}
	return out, nil
}

func listWorkers(ctx context.Context, q db.Querier, deliveryID int64) ([]Worker, error) {
	rows, err := q.Query(ctx, `SELECT delivery_id, employee_id, sacks_loaded, wage_earned
		FROM delivery_workers WHERE delivery_id = $1 ORDER BY id`, deliveryID)
	if err != nil {
		return nil, shared.Backend("list delivery workers", err)
	}
	defer rows.Close()
	var out []Worker
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.DeliveryID, &w.EmployeeID, &w.SacksLoaded, &w.WageEarned); err != nil {
			return nil, shared.Backend("scan delivery worker", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list delivery workers", err)
	}
	return out, nil
}

// GetDelivery retrieves a delivery with its stops and workers.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if err != nil {
		return Delivery{}, fmt.Errorf("delivery %d: %w", id, err)
	}
	if d.Stops, err = listStops(ctx, r.pool, id); err != nil {
		return Delivery{}, err
	}
	if d.Workers, err = listWorkers(ctx, r.pool, id); err != nil {
		return Delivery{}, err
	}
	return d, nil
}

// ListDeliveries lists deliveries by date, newest first, without stops.
func (r *Repository) ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conds = append(conds, fmt.Sprintf("delivery_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conds = append(conds, fmt.Sprintf("delivery_date <= $%d", len(args)))
	}
	query := `SELECT ` + deliveryColumns + ` FROM deliveries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY delivery_date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Backend("list deliveries", err)
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list deliveries", err)
	}
	return out, nil
}
