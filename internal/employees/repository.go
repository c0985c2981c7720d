package employees

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrodistri/agrodistri/internal/platform/db"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// TxRepository exposes employee statements usable inside another unit of work.
type TxRepository interface {
	InsertEmployee(ctx context.Context, e Employee) (int64, error)
	GetEmployee(ctx context.Context, id int64) (Employee, error)
}

// Repository persists employees in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	tx   TxRepository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, tx: NewTxRepository(pool)}
}

type txRepo struct {
	q db.Querier
}

// NewTxRepository binds employee statements to q.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepo{q: q}
}

func (t *txRepo) InsertEmployee(ctx context.Context, e Employee) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO employees (name, role, phone, is_active, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.Name, string(e.Role), e.Phone, e.IsActive, e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, shared.Backend("insert employee", err)
	}
	return id, nil
}

func (t *txRepo) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	var e Employee
	var role string
	err := t.q.QueryRow(ctx, `SELECT id, name, role, phone, is_active, created_at FROM employees WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &role, &e.Phone, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
		}
		return Employee{}, shared.Backend("get employee", err)
	}
	e.Role = Role(role)
	return e, nil
}

// InsertEmployee inserts outside any transaction.
func (r *Repository) InsertEmployee(ctx context.Context, e Employee) (int64, error) {
	return r.tx.InsertEmployee(ctx, e)
}

// GetEmployee loads one employee.
func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return r.tx.GetEmployee(ctx, id)
}

// ListEmployees lists employees, optionally restricted to one role.
func (r *Repository) ListEmployees(ctx context.Context, role Role) ([]Employee, error) {
	query := `SELECT id, name, role, phone, is_active, created_at FROM employees`
	var args []any
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY name, id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Backend("list employees", err)
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		var e Employee
		var rl string
		if err := rows.Scan(&e.ID, &e.Name, &rl, &e.Phone, &e.IsActive, &e.CreatedAt); err != nil {
			return nil, shared.Backend("scan employee", err)
		}
		e.Role = Role(rl)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Backend("list employees", err)
	}
	return out, nil
}
