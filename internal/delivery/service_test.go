package delivery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodistri/agrodistri/internal/delivery"
	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/platform/lock"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
	"github.com/agrodistri/agrodistri/internal/testing/memdb"
)

var today = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db       *memdb.DB
	orders   *orders.Service
	svc      *delivery.Service
	store    int64
	productA int64
	productB int64
	driver   int64
	loaders  []int64
}

func newFixture(t *testing.T, policy orders.StockPolicy) *fixture {
	t.Helper()
	db := memdb.New()
	clock := func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	f := &fixture{db: db}
	f.store = db.SeedStore(stores.Store{Name: "Toko Subur", IsActive: true})
	f.productA = db.SeedProduct(inventory.Product{Name: "Urea", Stock: 10, SellingPrice: decimal.NewFromInt(50), IsActive: true})
	f.productB = db.SeedProduct(inventory.Product{Name: "NPK", Stock: 5, SellingPrice: decimal.NewFromInt(100), IsActive: true})
	f.driver = db.SeedEmployee(employees.Employee{Name: "Budi", Role: employees.RoleDriver, IsActive: true})
	f.loaders = []int64{
		db.SeedEmployee(employees.Employee{Name: "Andi", Role: employees.RoleLoader, IsActive: true}),
		db.SeedEmployee(employees.Employee{Name: "Eko", Role: employees.RoleLoader, IsActive: true}),
	}
	f.orders = orders.NewService(db.Orders(), nil, orders.ServiceConfig{StockPolicy: policy, Now: clock})
	f.svc = delivery.NewService(db.Deliveries(), nil, delivery.ServiceConfig{
		WagePerSack: decimal.NewFromInt(500),
		Now:         clock,
	})
	return f
}

// twoOrders creates 2xA+1xB and 1xA.
func (f *fixture) twoOrders(t *testing.T) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	first, err := f.orders.Create(ctx, orders.CreateInput{
		StoreID:       f.store,
		PaymentMethod: orders.PaymentCash,
		Items: []orders.ItemInput{
			{ProductID: f.productA, Quantity: 2},
			{ProductID: f.productB, Quantity: 1},
		},
	})
	require.NoError(t, err)
	second, err := f.orders.Create(ctx, orders.CreateInput{
		StoreID:       f.store,
		PaymentMethod: orders.PaymentCash,
		Items:         []orders.ItemInput{{ProductID: f.productA, Quantity: 1}},
	})
	require.NoError(t, err)
	return first.ID, second.ID
}

func (f *fixture) schedule(t *testing.T, orderIDs ...int64) delivery.Delivery {
	t.Helper()
	d, err := f.svc.Create(context.Background(), delivery.CreateInput{
		OrderIDs:     orderIDs,
		DriverID:     f.driver,
		DeliveryDate: today,
		TruckNumber:  "B 1234 XY",
		LoaderIDs:    f.loaders,
	})
	require.NoError(t, err)
	return d
}

func TestCreateBundlesOrders(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)

	d := f.schedule(t, o2, o1)

	assert.Equal(t, delivery.StatusScheduled, d.Status)
	assert.Equal(t, 2, d.TotalOrders)
	assert.Equal(t, 4, d.TotalSacks)
	assert.Contains(t, d.Number, shared.DeliveryPrefix+"-")
	require.Len(t, d.Stops, 2)
	assert.Equal(t, o2, d.Stops[0].OrderID)
	assert.Equal(t, 1, d.Stops[0].RouteOrder)
	assert.Equal(t, o1, d.Stops[1].OrderID)
	assert.Equal(t, 2, d.Stops[1].RouteOrder)
	for _, st := range d.Stops {
		assert.Equal(t, orders.StatusScheduled, st.Status)
	}
	require.Len(t, d.Workers, 2)
	for _, w := range d.Workers {
		assert.True(t, w.WageEarned.IsZero())
		assert.Zero(t, w.SacksLoaded)
	}
	assert.Equal(t, orders.StatusScheduled, f.db.Order(o1).Status)
	assert.Equal(t, orders.StatusScheduled, f.db.Order(o2).Status)
	assert.Equal(t, 10, f.db.Product(f.productA).Stock)
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	ctx := context.Background()
	idle := f.db.SeedEmployee(employees.Employee{Name: "Cuti", Role: employees.RoleDriver, IsActive: false})

	cases := []struct {
		name  string
		input delivery.CreateInput
		want  error
	}{
		{"no orders", delivery.CreateInput{DriverID: f.driver, DeliveryDate: today}, shared.ErrValidation},
		{"no driver", delivery.CreateInput{OrderIDs: []int64{o1}, DeliveryDate: today}, shared.ErrValidation},
		{"duplicate order", delivery.CreateInput{OrderIDs: []int64{o1, o1}, DriverID: f.driver, DeliveryDate: today}, shared.ErrValidation},
		{"inactive driver", delivery.CreateInput{OrderIDs: []int64{o1}, DriverID: idle, DeliveryDate: today}, shared.ErrValidation},
		{"loader as driver", delivery.CreateInput{OrderIDs: []int64{o1}, DriverID: f.loaders[0], DeliveryDate: today}, shared.ErrValidation},
		{"unknown order", delivery.CreateInput{OrderIDs: []int64{o1, 999}, DriverID: f.driver, DeliveryDate: today}, shared.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}

	f.schedule(t, o1)
	_, err := f.svc.Create(ctx, delivery.CreateInput{OrderIDs: []int64{o2, o1}, DriverID: f.driver, DeliveryDate: today})
	require.ErrorIs(t, err, shared.ErrPrecondition)
	assert.Equal(t, orders.StatusPendingDelivery, f.db.Order(o2).Status)
	assert.Equal(t, 1, f.db.Counts()["deliveries"])
}

func TestCreateRollsBackOnStopFailure(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	f.db.FailOn("InsertStop", errors.New("connection reset"))

	_, err := f.svc.Create(context.Background(), delivery.CreateInput{OrderIDs: []int64{o1, o2}, DriverID: f.driver, DeliveryDate: today})
	require.Error(t, err)

	counts := f.db.Counts()
	assert.Zero(t, counts["deliveries"])
	assert.Zero(t, counts["delivery_orders"])
	assert.Equal(t, orders.StatusPendingDelivery, f.db.Order(o1).Status)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	d := f.schedule(t, o1, o2)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusOnDelivery, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Equal(t, 7, f.db.Product(f.productA).Stock)
	assert.Equal(t, 4, f.db.Product(f.productB).Stock)
	for _, id := range []int64{o1, o2} {
		o := f.db.Order(id)
		assert.Equal(t, orders.StatusOnDelivery, o.Status)
		assert.True(t, o.StockDeducted)
	}
	for _, st := range started.Stops {
		assert.Equal(t, orders.StatusOnDelivery, st.Status)
		assert.True(t, st.StockDeducted)
	}
	for _, l := range f.db.StockLogs(f.productA) {
		assert.Equal(t, inventory.RefDelivery, l.ReferenceType)
		assert.Equal(t, d.ID, l.ReferenceID)
		assert.Equal(t, l.StockBefore+l.Quantity, l.StockAfter)
	}

	_, err = f.svc.Complete(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)
	assert.Contains(t, err.Error(), "not all orders delivered")

	_, err = f.svc.MarkStopDelivered(ctx, d.ID, o1, delivery.MarkDeliveredInput{RecipientName: "Pak Harto"})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, f.db.Order(o1).Status)

	_, err = f.svc.MarkStopDelivered(ctx, d.ID, o1, delivery.MarkDeliveredInput{RecipientName: "Pak Harto"})
	require.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = f.svc.Complete(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = f.svc.MarkStopDelivered(ctx, d.ID, o2, delivery.MarkDeliveredInput{RecipientName: "Bu Sri"})
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusDelivered, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Len(t, done.Workers, 2)
	assert.Equal(t, 2, done.Workers[0].SacksLoaded)
	assert.Equal(t, 2, done.Workers[1].SacksLoaded)
	assert.True(t, decimal.NewFromInt(1000).Equal(done.Workers[0].WageEarned))
	for _, st := range done.Stops {
		assert.Equal(t, orders.StatusDelivered, st.Status)
		assert.NotEmpty(t, st.RecipientName)
		assert.NotNil(t, st.DeliveredAt)
	}

	_, err = f.svc.Cancel(ctx, d.ID, "late")
	require.ErrorIs(t, err, shared.ErrPrecondition)
	_, err = f.svc.Start(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestStartRequiresScheduled(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, _ := f.twoOrders(t)
	d := f.schedule(t, o1)
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)
	_, err = f.svc.MarkStopDelivered(ctx, d.ID, o1, delivery.MarkDeliveredInput{RecipientName: "x"})
	require.ErrorIs(t, err, shared.ErrPrecondition)

	_, err = f.svc.Start(ctx, d.ID)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrPrecondition)
	assert.Equal(t, 8, f.db.Product(f.productA).Stock)
}

func TestStartInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	d := f.schedule(t, o1, o2)
	ctx := context.Background()

	stock := inventory.NewService(f.db.Inventory(), nil, inventory.ServiceConfig{})
	_, err := stock.Adjust(ctx, inventory.AdjustInput{ProductID: f.productA, Delta: -9, Reason: inventory.LogTypeAdjustment, Notes: "opname"})
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusScheduled, got.Status)
	assert.Nil(t, got.StartedAt)
	for _, st := range got.Stops {
		assert.Equal(t, orders.StatusScheduled, st.Status)
		assert.False(t, st.StockDeducted)
	}
	assert.Equal(t, orders.StatusScheduled, f.db.Order(o1).Status)
	assert.Equal(t, 1, f.db.Product(f.productA).Stock)
	assert.Equal(t, 5, f.db.Product(f.productB).Stock)
}

func TestCancelAfterStartRestoresUndeliveredStock(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	d := f.schedule(t, o1, o2)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, d.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkStopDelivered(ctx, d.ID, o2, delivery.MarkDeliveredInput{RecipientName: "Bu Sri"})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, d.ID, "truk mogok")
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusCancelled, cancelled.Status)
	assert.Equal(t, "truk mogok", cancelled.CancelReason)

	assert.Equal(t, 9, f.db.Product(f.productA).Stock)
	assert.Equal(t, 5, f.db.Product(f.productB).Stock)

	back := f.db.Order(o1)
	assert.Equal(t, orders.StatusPendingDelivery, back.Status)
	assert.False(t, back.StockDeducted)
	assert.Equal(t, orders.StatusDelivered, f.db.Order(o2).Status)

	logs := f.db.StockLogs(f.productA)
	last := logs[len(logs)-1]
	assert.Equal(t, inventory.RefDeliveryCancel, last.ReferenceType)
	assert.Equal(t, 2, last.Quantity)

	for _, st := range cancelled.Stops {
		if st.OrderID == o1 {
			assert.Equal(t, orders.StatusCancelled, st.Status)
		} else {
			assert.Equal(t, orders.StatusDelivered, st.Status)
		}
	}

	again := f.schedule(t, o1)
	assert.Equal(t, 3, again.TotalSacks)
}

func TestCancelScheduledReleasesOrders(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	d := f.schedule(t, o1, o2)

	_, err := f.svc.Cancel(context.Background(), d.ID, "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPendingDelivery, f.db.Order(o1).Status)
	assert.Equal(t, orders.StatusPendingDelivery, f.db.Order(o2).Status)
	assert.Empty(t, f.db.StockLogs(f.productA))
}

func TestOnOrderPolicySkipsDeductionAtStart(t *testing.T) {
	f := newFixture(t, orders.StockOnOrder)
	o1, o2 := f.twoOrders(t)
	require.Equal(t, 7, f.db.Product(f.productA).Stock)
	d := f.schedule(t, o1, o2)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, f.db.Product(f.productA).Stock)
	for _, st := range started.Stops {
		assert.False(t, st.StockDeducted)
	}

	_, err = f.svc.Cancel(ctx, d.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 7, f.db.Product(f.productA).Stock)
	assert.True(t, f.db.Order(o1).StockDeducted)

	_, err = f.orders.Cancel(ctx, o1, "")
	require.NoError(t, err)
	assert.Equal(t, 9, f.db.Product(f.productA).Stock)
	assert.Equal(t, 5, f.db.Product(f.productB).Stock)
}

func TestReorderStops(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, o2 := f.twoOrders(t)
	d := f.schedule(t, o1, o2)
	ctx := context.Background()

	_, err := f.svc.ReorderStops(ctx, d.ID, []int64{o1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.ReorderStops(ctx, d.ID, []int64{o1, o1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.ReorderStops(ctx, d.ID, []int64{o1, 42})
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := f.svc.ReorderStops(ctx, d.ID, []int64{o2, o1})
	require.NoError(t, err)
	require.Len(t, got.Stops, 2)
	assert.Equal(t, o2, got.Stops[0].OrderID)
	assert.Equal(t, 1, got.Stops[0].RouteOrder)
	assert.Equal(t, o1, got.Stops[1].OrderID)
	assert.Equal(t, 2, got.Stops[1].RouteOrder)

	_, err = f.svc.Start(ctx, d.ID)
	require.NoError(t, err)
	_, err = f.svc.ReorderStops(ctx, d.ID, []int64{o1, o2})
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

type busyLocker struct{ keys []string }

func (b *busyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	b.keys = append(b.keys, key)
	return nil, lock.ErrBusy
}

func TestTransitionsHoldDeliveryLock(t *testing.T) {
	f := newFixture(t, orders.StockOnDelivery)
	o1, _ := f.twoOrders(t)
	d := f.schedule(t, o1)
	locker := &busyLocker{}
	svc := delivery.NewService(f.db.Deliveries(), nil, delivery.ServiceConfig{Locker: locker})

	_, err := svc.Start(context.Background(), d.ID)
	require.ErrorIs(t, err, lock.ErrBusy)
	assert.Equal(t, []string{shared.DeliveryLockKey(d.ID)}, locker.keys)
	assert.Equal(t, 10, f.db.Product(f.productA).Stock)
}

func TestSplitSacks(t *testing.T) {
	assert.Nil(t, delivery.SplitSacks(10, 0))
	assert.Equal(t, []int{4, 3, 3}, delivery.SplitSacks(10, 3))
	assert.Equal(t, []int{0, 0}, delivery.SplitSacks(0, 2))
	assert.Equal(t, []int{5}, delivery.SplitSacks(5, 1))
}
