package payments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/payments"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
	"github.com/agrodistri/agrodistri/internal/testing/memdb"
)

type memGuard struct {
	keys map[string]bool
}

func (g *memGuard) CheckAndInsert(ctx context.Context, key, module string) error {
	if g.keys[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[module+"/"+key] = true
	return nil
}

func (g *memGuard) Delete(ctx context.Context, key, module string) error {
	delete(g.keys, module+"/"+key)
	return nil
}

type fixture struct {
	db     *memdb.DB
	orders *orders.Service
	svc    *payments.Service
	guard  *memGuard
	store  int64
	order  int64
}

func newFixture(t *testing.T, method orders.PaymentMethod) *fixture {
	t.Helper()
	db := memdb.New()
	f := &fixture{db: db, guard: &memGuard{keys: make(map[string]bool)}}
	f.store = db.SeedStore(stores.Store{Name: "Toko Sejahtera", IsActive: true})
	product := db.SeedProduct(inventory.Product{Name: "Urea", Stock: 10, SellingPrice: decimal.NewFromInt(50), IsActive: true})
	f.orders = orders.NewService(db.Orders(), nil, orders.ServiceConfig{})
	f.svc = payments.NewService(db.Payments(), nil, payments.ServiceConfig{
		Idempotency: f.guard,
		Now:         func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) },
	})
	detail, err := f.orders.Create(context.Background(), orders.CreateInput{
		StoreID:       f.store,
		PaymentMethod: method,
		Items:         []orders.ItemInput{{ProductID: product, Quantity: 4}},
	})
	require.NoError(t, err)
	f.order = detail.ID
	return f
}

func pay(amount int64) payments.AddInput {
	return payments.AddInput{Amount: decimal.NewFromInt(amount), Method: payments.MethodCash}
}

func (f *fixture) add(t *testing.T, in payments.AddInput) (payments.Receipt, error) {
	t.Helper()
	in.OrderID = f.order
	return f.svc.AddPayment(context.Background(), in)
}

func TestFullPaymentMarksPaid(t *testing.T) {
	f := newFixture(t, orders.PaymentCash)

	receipt, err := f.add(t, pay(200))
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, receipt.Summary.PaymentStatus)
	assert.True(t, receipt.Summary.Remaining.IsZero())
	assert.Equal(t, orders.PaymentPaid, f.db.Order(f.order).PaymentStatus)
	assert.NotZero(t, receipt.Payment.ID)
}

func TestPartialThenOverpayment(t *testing.T) {
	f := newFixture(t, orders.PaymentTransfer)

	receipt, err := f.add(t, pay(50))
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPartial, receipt.Summary.PaymentStatus)
	assert.True(t, decimal.NewFromInt(150).Equal(receipt.Summary.Remaining))

	receipt, err = f.add(t, pay(250))
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, receipt.Summary.PaymentStatus)
	assert.True(t, decimal.NewFromInt(-100).Equal(receipt.Summary.Remaining))
	assert.True(t, decimal.NewFromInt(300).Equal(receipt.Summary.TotalPaid))

	sum, err := f.svc.Summary(context.Background(), f.order)
	require.NoError(t, err)
	assert.Len(t, sum.Payments, 2)
	assert.Equal(t, orders.PaymentPaid, sum.PaymentStatus)
}

func TestTempoPaymentReducesDebt(t *testing.T) {
	f := newFixture(t, orders.PaymentTempo)
	require.True(t, decimal.NewFromInt(200).Equal(f.db.Store(f.store).Debt))

	receipt, err := f.add(t, pay(50))
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPartial, receipt.Summary.PaymentStatus)
	assert.True(t, decimal.NewFromInt(150).Equal(f.db.Store(f.store).Debt))

	_, err = f.add(t, pay(500))
	require.NoError(t, err)
	assert.True(t, f.db.Store(f.store).Debt.IsZero(), "debt floors at zero")
}

func TestCashPaymentLeavesDebt(t *testing.T) {
	f := newFixture(t, orders.PaymentCash)
	_, err := f.add(t, pay(50))
	require.NoError(t, err)
	assert.True(t, f.db.Store(f.store).Debt.IsZero())
}

func TestAddPaymentValidation(t *testing.T) {
	f := newFixture(t, orders.PaymentCash)

	_, err := f.add(t, pay(0))
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.add(t, pay(-5))
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.add(t, payments.AddInput{Amount: decimal.NewFromInt(5), Method: "tempo"})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.AddPayment(context.Background(), payments.AddInput{OrderID: 404, Amount: decimal.NewFromInt(5), Method: payments.MethodCash})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Zero(t, f.db.Counts()["payments"])
}

func TestCancelledOrderRejectsPayment(t *testing.T) {
	f := newFixture(t, orders.PaymentCash)
	_, err := f.orders.Cancel(context.Background(), f.order, "")
	require.NoError(t, err)

	_, err = f.add(t, pay(10))
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestIdempotencyKey(t *testing.T) {
	f := newFixture(t, orders.PaymentCash)
	in := pay(50)
	in.IdempotencyKey = "pay-1"

	_, err := f.add(t, in)
	require.NoError(t, err)
	_, err = f.add(t, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Equal(t, 1, f.db.Counts()["payments"])
}

func TestFailedPaymentReleasesKeyAndRollsBack(t *testing.T) {
	f := newFixture(t, orders.PaymentTempo)
	f.db.FailOn("UpdateStoreDebt", errors.New("timeout"))
	in := pay(50)
	in.IdempotencyKey = "pay-2"

	_, err := f.add(t, in)
	require.Error(t, err)
	assert.Zero(t, f.db.Counts()["payments"])
	assert.Equal(t, orders.PaymentUnpaid, f.db.Order(f.order).PaymentStatus)
	assert.False(t, f.guard.keys["payments/pay-2"])

	f.db.FailOn("UpdateStoreDebt", nil)
	_, err = f.add(t, in)
	require.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	o := orders.Order{ID: 1, TotalAmount: decimal.NewFromInt(100)}
	sum := payments.Summarize(o, nil)
	assert.Equal(t, orders.PaymentUnpaid, sum.PaymentStatus)
	assert.NotNil(t, sum.Payments)
	assert.True(t, decimal.NewFromInt(100).Equal(sum.Remaining))
}
