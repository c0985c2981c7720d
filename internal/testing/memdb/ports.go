package memdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/delivery"
	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/payments"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
)

// Inventory returns the inventory repository view.
func (d *DB) Inventory() inventory.RepositoryPort { return inventoryRepo{d} }

// Stores returns the store repository view.
func (d *DB) Stores() stores.RepositoryPort { return storesRepo{d} }

// Employees returns the employee repository view.
func (d *DB) Employees() employees.RepositoryPort { return employeesRepo{d} }

// Orders returns the order repository view.
func (d *DB) Orders() orders.RepositoryPort { return ordersRepo{d} }

// Deliveries returns the delivery repository view.
func (d *DB) Deliveries() delivery.RepositoryPort { return deliveryRepo{d} }

// Payments returns the payment repository view.
func (d *DB) Payments() payments.RepositoryPort { return paymentsRepo{d} }

// ============================================================================
// INVENTORY
// ============================================================================

type inventoryRepo struct{ db *DB }

func (r inventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.db.run(func(tx *Tx) error { return fn(ctx, tx) })
}

func (r inventoryRepo) GetProduct(ctx context.Context, id int64) (inventory.Product, error) {
	var (
		p  inventory.Product
		ok bool
	)
	r.db.read(func(s *state) { p, ok = s.products[id] })
	if !ok {
		return inventory.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r inventoryRepo) ListProducts(ctx context.Context, filter inventory.ProductFilter) ([]inventory.Product, error) {
	var out []inventory.Product
	search := strings.TrimSpace(filter.Search)
	r.db.read(func(s *state) {
		for _, p := range s.products {
			if filter.ActiveOnly && !p.IsActive {
				continue
			}
			if filter.LowStockOnly && !p.IsLowStock() {
				continue
			}
			if search != "" && !containsFold(p.Name, search) && !containsFold(p.Type, search) {
				continue
			}
			out = append(out, p)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r inventoryRepo) ListStockLogs(ctx context.Context, productID int64, limit int) ([]inventory.StockLog, error) {
	logs := r.db.StockLogs(productID)
	out := make([]inventory.StockLog, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		out = append(out, logs[i])
	}
	if limit <= 0 {
		limit = 50
	}
	return page(out, limit, 0), nil
}

// ============================================================================
// STORES
// ============================================================================

type storesRepo struct{ db *DB }

func (r storesRepo) WithTx(ctx context.Context, fn func(context.Context, stores.TxRepository) error) error {
	return r.db.run(func(tx *Tx) error { return fn(ctx, tx) })
}

func (r storesRepo) GetStore(ctx context.Context, id int64) (stores.Store, error) {
	var (
		st stores.Store
		ok bool
	)
	r.db.read(func(s *state) { st, ok = s.stores[id] })
	if !ok {
		return stores.Store{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return st, nil
}

func (r storesRepo) ListStores(ctx context.Context, filter stores.StoreFilter) ([]stores.Store, error) {
	var out []stores.Store
	search := strings.TrimSpace(filter.Search)
	r.db.read(func(s *state) {
		for _, st := range s.stores {
			if filter.Region != "" && st.Region != filter.Region {
				continue
			}
			if filter.WithDebt && !st.Debt.IsPositive() {
				continue
			}
			if search != "" && !containsFold(st.Name, search) && !containsFold(st.Owner, search) {
				continue
			}
			out = append(out, st)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r storesRepo) ListCustomPrices(ctx context.Context, storeID int64) ([]stores.CustomPrice, error) {
	var out []stores.CustomPrice
	r.db.read(func(s *state) {
		for k, cp := range s.prices {
			if k.store == storeID {
				out = append(out, cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// ============================================================================
// EMPLOYEES
// ============================================================================

type employeesRepo struct{ db *DB }

func (r employeesRepo) InsertEmployee(ctx context.Context, e employees.Employee) (int64, error) {
	var id int64
	err := r.db.run(func(tx *Tx) error {
		var err error
		id, err = tx.InsertEmployee(ctx, e)
		return err
	})
	return id, err
}

func (r employeesRepo) GetEmployee(ctx context.Context, id int64) (employees.Employee, error) {
	var (
		e  employees.Employee
		ok bool
	)
	r.db.read(func(s *state) { e, ok = s.employees[id] })
	if !ok {
		return employees.Employee{}, fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (r employeesRepo) ListEmployees(ctx context.Context, role employees.Role) ([]employees.Employee, error) {
	var out []employees.Employee
	r.db.read(func(s *state) {
		for _, e := range s.employees {
			if role == "" || e.Role == role {
				out = append(out, e)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ============================================================================
// ORDERS
// ============================================================================

type ordersRepo struct{ db *DB }

func (r ordersRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	return r.db.run(func(tx *Tx) error { return fn(ctx, tx) })
}

func (r ordersRepo) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	var (
		o  orders.Order
		ok bool
	)
	r.db.read(func(s *state) { o, ok = s.orders[id] })
	if !ok {
		return orders.Order{}, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	return o, nil
}

func (r ordersRepo) ListOrderItems(ctx context.Context, orderIDs []int64) ([]orders.Item, error) {
	var out []orders.Item
	r.db.read(func(s *state) { out = s.orderItems(orderIDs) })
	return out, nil
}

func (r ordersRepo) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	r.db.read(func(s *state) { total = s.sumPayments(orderID) })
	return total, nil
}

func (r ordersRepo) ListOrders(ctx context.Context, filter orders.ListFilter) ([]orders.Order, int, error) {
	var out []orders.Order
	r.db.read(func(s *state) {
		for _, o := range s.orders {
			if filter.Status != "" && o.Status != filter.Status {
				continue
			}
			if filter.StoreID != 0 && o.StoreID != filter.StoreID {
				continue
			}
			out = append(out, o)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), len(out), nil
}

// ============================================================================
// DELIVERIES
// ============================================================================

type deliveryRepo struct{ db *DB }

func (r deliveryRepo) WithTx(ctx context.Context, fn func(context.Context, delivery.TxRepository) error) error {
	return r.db.run(func(tx *Tx) error { return fn(ctx, tx) })
}

func (r deliveryRepo) GetDelivery(ctx context.Context, id int64) (delivery.Delivery, error) {
	var (
		d  delivery.Delivery
		ok bool
	)
	r.db.read(func(s *state) {
		d, ok = s.deliveries[id]
		d.Stops = s.deliveryStops(id)
		d.Workers = s.deliveryWorkers(id)
	})
	if !ok {
		return delivery.Delivery{}, fmt.Errorf("delivery %d: %w", id, shared.ErrNotFound)
	}
	return d, nil
}

func (r deliveryRepo) ListDeliveries(ctx context.Context, filter delivery.ListFilter) ([]delivery.Delivery, error) {
	var out []delivery.Delivery
	r.db.read(func(s *state) {
		for _, d := range s.deliveries {
			if filter.Status != "" && d.Status != filter.Status {
				continue
			}
			if filter.DateFrom != nil && d.DeliveryDate.Before(*filter.DateFrom) {
				continue
			}
			if filter.DateTo != nil && d.DeliveryDate.After(*filter.DateTo) {
				continue
			}
			out = append(out, d)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeliveryDate.Equal(out[j].DeliveryDate) {
			return out[i].DeliveryDate.After(out[j].DeliveryDate)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// ============================================================================
// PAYMENTS
// ============================================================================

type paymentsRepo struct{ db *DB }

func (r paymentsRepo) WithTx(ctx context.Context, fn func(context.Context, payments.TxRepository) error) error {
	return r.db.run(func(tx *Tx) error { return fn(ctx, tx) })
}

func (r paymentsRepo) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return ordersRepo(r).GetOrder(ctx, id)
}

func (r paymentsRepo) ListPayments(ctx context.Context, orderID int64) ([]payments.Payment, error) {
	var out []payments.Payment
	r.db.read(func(s *state) { out = s.orderPayments(orderID) })
	return out, nil
}
