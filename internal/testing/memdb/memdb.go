// Package memdb is an in-memory stand-in for the PostgreSQL repositories.
// Every unit of work runs against a copy of the data that is published
// only when the callback succeeds, so rollback behaves like a real
// transaction. Units of work are serialized.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/delivery"
	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/payments"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
)

type priceKey struct {
	store   int64
	product int64
}

type state struct {
	seq        map[string]int64
	products   map[int64]inventory.Product
	logs       []inventory.StockLog
	stores     map[int64]stores.Store
	prices     map[priceKey]stores.CustomPrice
	employees  map[int64]employees.Employee
	orders     map[int64]orders.Order
	items      []orders.Item
	deliveries map[int64]delivery.Delivery
	stops      []delivery.Stop
	workers    []delivery.Worker
	payments   []payments.Payment
}

func newState() *state {
	return &state{
		seq:        make(map[string]int64),
		products:   make(map[int64]inventory.Product),
		stores:     make(map[int64]stores.Store),
		prices:     make(map[priceKey]stores.CustomPrice),
		employees:  make(map[int64]employees.Employee),
		orders:     make(map[int64]orders.Order),
		deliveries: make(map[int64]delivery.Delivery),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:        cloneMap(s.seq),
		products:   cloneMap(s.products),
		logs:       append([]inventory.StockLog(nil), s.logs...),
		stores:     cloneMap(s.stores),
		prices:     cloneMap(s.prices),
		employees:  cloneMap(s.employees),
		orders:     cloneMap(s.orders),
		items:      append([]orders.Item(nil), s.items...),
		deliveries: cloneMap(s.deliveries),
		stops:      append([]delivery.Stop(nil), s.stops...),
		workers:    append([]delivery.Worker(nil), s.workers...),
		payments:   append([]payments.Payment(nil), s.payments...),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// DB holds the committed state.
type DB struct {
	mu   sync.Mutex
	st   *state
	fail map[string]error
}

// New returns an empty database.
func New() *DB {
	return &DB{st: newState(), fail: make(map[string]error)}
}

// FailOn makes every later call of the named Tx method return err. A nil
// err clears the injection.
func (d *DB) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, method)
		return
	}
	d.fail[method] = err
}

func (d *DB) run(fn func(*Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx := &Tx{st: d.st.clone(), fail: d.fail}
	if err := fn(tx); err != nil {
		return err
	}
	d.st = tx.st
	return nil
}

func (d *DB) read(fn func(*state)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.st)
}

// ============================================================================
// SEEDING
// ============================================================================

// SeedProduct inserts a product directly, bypassing the ledger.
func (d *DB) SeedProduct(p inventory.Product) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.ID = d.st.next("products")
	d.st.products[p.ID] = p
	return p.ID
}

// SeedStore inserts a store.
func (d *DB) SeedStore(s stores.Store) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	s.ID = d.st.next("stores")
	d.st.stores[s.ID] = s
	return s.ID
}

// SeedEmployee inserts an employee.
func (d *DB) SeedEmployee(e employees.Employee) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	e.ID = d.st.next("employees")
	d.st.employees[e.ID] = e
	return e.ID
}

// SeedCustomPrice sets a store price.
func (d *DB) SeedCustomPrice(storeID, productID int64, price decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.st.prices[priceKey{storeID, productID}] = stores.CustomPrice{StoreID: storeID, ProductID: productID, Price: price}
}

// ============================================================================
// INSPECTION
// ============================================================================

// Product returns the committed product.
func (d *DB) Product(id int64) inventory.Product {
	var p inventory.Product
	d.read(func(s *state) { p = s.products[id] })
	return p
}

// Store returns the committed store.
func (d *DB) Store(id int64) stores.Store {
	var st stores.Store
	d.read(func(s *state) { st = s.stores[id] })
	return st
}

// Order returns the committed order.
func (d *DB) Order(id int64) orders.Order {
	var o orders.Order
	d.read(func(s *state) { o = s.orders[id] })
	return o
}

// StockLogs returns every committed log row of a product, oldest first.
func (d *DB) StockLogs(productID int64) []inventory.StockLog {
	var out []inventory.StockLog
	d.read(func(s *state) {
		for _, l := range s.logs {
			if l.ProductID == productID {
				out = append(out, l)
			}
		}
	})
	return out
}

// Counts reports committed row counts by table.
func (d *DB) Counts() map[string]int {
	out := make(map[string]int)
	d.read(func(s *state) {
		out["orders"] = len(s.orders)
		out["order_items"] = len(s.items)
		out["stock_logs"] = len(s.logs)
		out["deliveries"] = len(s.deliveries)
		out["delivery_orders"] = len(s.stops)
		out["delivery_workers"] = len(s.workers)
		out["payments"] = len(s.payments)
	})
	return out
}

// ============================================================================
// TRANSACTION
// ============================================================================

// Tx implements the TxRepository of every lifecycle package.
type Tx struct {
	st   *state
	fail map[string]error
}

func (t *Tx) check(method string) error {
	return t.fail[method]
}

func (t *Tx) Stock() inventory.TxRepository { return t }

func (t *Tx) Stores() stores.TxRepository { return t }

func (t *Tx) Employees() employees.TxRepository { return t }

func (t *Tx) Orders() orders.TxRepository { return t }

// inventory

func (t *Tx) InsertProduct(ctx context.Context, p inventory.Product) (int64, error) {
	if err := t.check("InsertProduct"); err != nil {
		return 0, err
	}
	p.ID = t.st.next("products")
	t.st.products[p.ID] = p
	return p.ID, nil
}

func (t *Tx) GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error) {
	if err := t.check("GetProductForUpdate"); err != nil {
		return inventory.Product{}, err
	}
	p, ok := t.st.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (t *Tx) UpdateProductStock(ctx context.Context, id int64, stock int, at time.Time) error {
	if err := t.check("UpdateProductStock"); err != nil {
		return err
	}
	p, ok := t.st.products[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	p.Stock = stock
	p.UpdatedAt = at
	t.st.products[id] = p
	return nil
}

func (t *Tx) InsertStockLog(ctx context.Context, log inventory.StockLog) (int64, error) {
	if err := t.check("InsertStockLog"); err != nil {
		return 0, err
	}
	log.ID = t.st.next("stock_logs")
	t.st.logs = append(t.st.logs, log)
	return log.ID, nil
}

// stores

func (t *Tx) InsertStore(ctx context.Context, s stores.Store) (int64, error) {
	if err := t.check("InsertStore"); err != nil {
		return 0, err
	}
	s.ID = t.st.next("stores")
	t.st.stores[s.ID] = s
	return s.ID, nil
}

func (t *Tx) GetStoreForUpdate(ctx context.Context, id int64) (stores.Store, error) {
	if err := t.check("GetStoreForUpdate"); err != nil {
		return stores.Store{}, err
	}
	s, ok := t.st.stores[id]
	if !ok {
		return stores.Store{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (t *Tx) UpdateStoreDebt(ctx context.Context, id int64, debt decimal.Decimal, at time.Time) error {
	if err := t.check("UpdateStoreDebt"); err != nil {
		return err
	}
	s, ok := t.st.stores[id]
	if !ok {
		return fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	s.Debt = debt
	s.UpdatedAt = at
	t.st.stores[id] = s
	return nil
}

func (t *Tx) UpsertCustomPrice(ctx context.Context, cp stores.CustomPrice) error {
	if err := t.check("UpsertCustomPrice"); err != nil {
		return err
	}
	if _, ok := t.st.stores[cp.StoreID]; !ok {
		return fmt.Errorf("store %d: %w", cp.StoreID, shared.ErrNotFound)
	}
	if _, ok := t.st.products[cp.ProductID]; !ok {
		return fmt.Errorf("product %d: %w", cp.ProductID, shared.ErrNotFound)
	}
	t.st.prices[priceKey{cp.StoreID, cp.ProductID}] = cp
	return nil
}

func (t *Tx) GetCustomPrices(ctx context.Context, storeID int64) (map[int64]decimal.Decimal, error) {
	if err := t.check("GetCustomPrices"); err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal)
	for k, cp := range t.st.prices {
		if k.store == storeID {
			out[k.product] = cp.Price
		}
	}
	return out, nil
}

// employees

func (t *Tx) InsertEmployee(ctx context.Context, e employees.Employee) (int64, error) {
	if err := t.check("InsertEmployee"); err != nil {
		return 0, err
	}
	e.ID = t.st.next("employees")
	t.st.employees[e.ID] = e
	return e.ID, nil
}

func (t *Tx) GetEmployee(ctx context.Context, id int64) (employees.Employee, error) {
	if err := t.check("GetEmployee"); err != nil {
		return employees.Employee{}, err
	}
	e, ok := t.st.employees[id]
	if !ok {
		return employees.Employee{}, fmt.Errorf("employee %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

// orders

func (t *Tx) InsertOrder(ctx context.Context, o orders.Order) (int64, error) {
	if err := t.check("InsertOrder"); err != nil {
		return 0, err
	}
	o.ID = t.st.next("orders")
	o.UpdatedAt = o.CreatedAt
	t.st.orders[o.ID] = o
	return o.ID, nil
}

func (t *Tx) InsertOrderItem(ctx context.Context, item orders.Item) (int64, error) {
	if err := t.check("InsertOrderItem"); err != nil {
		return 0, err
	}
	item.ID = t.st.next("order_items")
	t.st.items = append(t.st.items, item)
	return item.ID, nil
}

func (t *Tx) GetOrderForUpdate(ctx context.Context, id int64) (orders.Order, error) {
	if err := t.check("GetOrderForUpdate"); err != nil {
		return orders.Order{}, err
	}
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %d: %w", id, shared.ErrNotFound)
	}
	return o, nil
}

func (t *Tx) ListOrderItems(ctx context.Context, orderIDs []int64) ([]orders.Item, error) {
	if err := t.check("ListOrderItems"); err != nil {
		return nil, err
	}
	return t.st.orderItems(orderIDs), nil
}

func (t *Tx) UpdateOrder(ctx context.Context, o orders.Order) error {
	if err := t.check("UpdateOrder"); err != nil {
		return err
	}
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %d: %w", o.ID, shared.ErrNotFound)
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.CancelReason = o.CancelReason
	cur.StockDeducted = o.StockDeducted
	cur.UpdatedAt = o.UpdatedAt
	t.st.orders[o.ID] = cur
	return nil
}

func (t *Tx) SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	if err := t.check("SumPayments"); err != nil {
		return decimal.Zero, err
	}
	return t.st.sumPayments(orderID), nil
}

// delivery

func (t *Tx) InsertDelivery(ctx context.Context, d delivery.Delivery) (int64, error) {
	if err := t.check("InsertDelivery"); err != nil {
		return 0, err
	}
	d.ID = t.st.next("deliveries")
	d.UpdatedAt = d.CreatedAt
	d.Stops, d.Workers = nil, nil
	t.st.deliveries[d.ID] = d
	return d.ID, nil
}

func (t *Tx) InsertStop(ctx context.Context, s delivery.Stop) error {
	if err := t.check("InsertStop"); err != nil {
		return err
	}
	for _, cur := range t.st.stops {
		if cur.DeliveryID == s.DeliveryID && cur.OrderID == s.OrderID {
			return fmt.Errorf("delivery %d already holds order %d", s.DeliveryID, s.OrderID)
		}
	}
	t.st.stops = append(t.st.stops, s)
	return nil
}

func (t *Tx) InsertWorker(ctx context.Context, w delivery.Worker) error {
	if err := t.check("InsertWorker"); err != nil {
		return err
	}
	t.st.workers = append(t.st.workers, w)
	return nil
}

func (t *Tx) GetDeliveryForUpdate(ctx context.Context, id int64) (delivery.Delivery, error) {
	if err := t.check("GetDeliveryForUpdate"); err != nil {
		return delivery.Delivery{}, err
	}
	d, ok := t.st.deliveries[id]
	if !ok {
		return delivery.Delivery{}, fmt.Errorf("delivery %d: %w", id, shared.ErrNotFound)
	}
	return d, nil
}

func (t *Tx) ListStops(ctx context.Context, deliveryID int64) ([]delivery.Stop, error) {
	if err := t.check("ListStops"); err != nil {
		return nil, err
	}
	return t.st.deliveryStops(deliveryID), nil
}

func (t *Tx) ListWorkers(ctx context.Context, deliveryID int64) ([]delivery.Worker, error) {
	if err := t.check("ListWorkers"); err != nil {
		return nil, err
	}
	return t.st.deliveryWorkers(deliveryID), nil
}

func (t *Tx) UpdateDelivery(ctx context.Context, d delivery.Delivery) error {
	if err := t.check("UpdateDelivery"); err != nil {
		return err
	}
	cur, ok := t.st.deliveries[d.ID]
	if !ok {
		return fmt.Errorf("delivery %d: %w", d.ID, shared.ErrNotFound)
	}
	cur.Status = d.Status
	cur.CancelReason = d.CancelReason
	cur.StartedAt = d.StartedAt
	cur.CompletedAt = d.CompletedAt
	cur.CancelledAt = d.CancelledAt
	cur.UpdatedAt = d.UpdatedAt
	t.st.deliveries[d.ID] = cur
	return nil
}

func (t *Tx) UpdateStop(ctx context.Context, s delivery.Stop) error {
	if err := t.check("UpdateStop"); err != nil {
		return err
	}
	for i, cur := range t.st.stops {
		if cur.DeliveryID == s.DeliveryID && cur.OrderID == s.OrderID {
			t.st.stops[i] = s
			return nil
		}
	}
	return fmt.Errorf("delivery %d stop for order %d: %w", s.DeliveryID, s.OrderID, shared.ErrNotFound)
}

func (t *Tx) UpdateWorker(ctx context.Context, w delivery.Worker) error {
	if err := t.check("UpdateWorker"); err != nil {
		return err
	}
	for i, cur := range t.st.workers {
		if cur.DeliveryID == w.DeliveryID && cur.EmployeeID == w.EmployeeID {
			t.st.workers[i] = w
			return nil
		}
	}
	return nil
}

// payments

func (t *Tx) InsertPayment(ctx context.Context, p payments.Payment) (int64, error) {
	if err := t.check("InsertPayment"); err != nil {
		return 0, err
	}
	if p.IdempotencyKey != "" {
		for _, cur := range t.st.payments {
			if cur.IdempotencyKey == p.IdempotencyKey {
				return 0, shared.ErrIdempotencyConflict
			}
		}
	}
	p.ID = t.st.next("payments")
	t.st.payments = append(t.st.payments, p)
	return p.ID, nil
}

func (t *Tx) ListPayments(ctx context.Context, orderID int64) ([]payments.Payment, error) {
	if err := t.check("ListPayments"); err != nil {
		return nil, err
	}
	return t.st.orderPayments(orderID), nil
}

// ============================================================================
// SHARED QUERIES
// ============================================================================

func (s *state) orderItems(orderIDs []int64) []orders.Item {
	want := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []orders.Item
	for _, it := range s.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func (s *state) sumPayments(orderID int64) decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.payments {
		if p.OrderID == orderID {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func (s *state) orderPayments(orderID int64) []payments.Payment {
	var out []payments.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out
}

func (s *state) deliveryStops(deliveryID int64) []delivery.Stop {
	var out []delivery.Stop
	for _, st := range s.stops {
		if st.DeliveryID == deliveryID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteOrder < out[j].RouteOrder })
	return out
}

func (s *state) deliveryWorkers(deliveryID int64) []delivery.Worker {
	var out []delivery.Worker
	for _, w := range s.workers {
		if w.DeliveryID == deliveryID {
			out = append(out, w)
		}
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
