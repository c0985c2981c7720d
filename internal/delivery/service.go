package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/employees"
	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/platform/lock"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDelivery(ctx context.Context, id int64) (Delivery, error)
	ListDeliveries(ctx context.Context, filter ListFilter) ([]Delivery, error)
}

// Service provides business logic for delivery operations.
type Service struct {
	repo        RepositoryPort
	activity    shared.ActivityRecorder
	locker      lock.Locker
	lockTTL     time.Duration
	wagePerSack decimal.Decimal
	logger      *slog.Logger
	metrics     *observability.Lifecycle
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Locker      lock.Locker
	LockTTL     time.Duration
	WagePerSack decimal.Decimal
	Logger      *slog.Logger
	Metrics     *observability.Lifecycle
	Now         func() time.Time
}

// NewService constructs a delivery service.
func NewService(repo RepositoryPort, activity shared.ActivityRecorder, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		activity:    activity,
		locker:      cfg.Locker,
		lockTTL:     cfg.LockTTL,
		wagePerSack: cfg.WagePerSack,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
	if s.locker == nil {
		s.locker = lock.NoopLocker{}
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 30 * time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// transition runs fn inside a transaction while holding the delivery lock.
func (s *Service) transition(ctx context.Context, id int64, fn func(context.Context, TxRepository) error) error {
	release, err := s.locker.Acquire(ctx, shared.DeliveryLockKey(id), s.lockTTL)
	if err != nil {
		return err
	}
	defer release()
	return s.repo.WithTx(ctx, fn)
}

func notAllowed(id int64, action string, status Status) error {
	return shared.NewPreconditionError("delivery", id, fmt.Sprintf("cannot %s a delivery in status %s", action, status))
}

// ============================================================================
// CONSOLIDATION
// ============================================================================

func validateCreate(input CreateInput) error {
	if len(input.OrderIDs) == 0 {
		return shared.NewValidationError("order_ids", "at least one order is required")
	}
	if input.DriverID == 0 {
		return shared.NewValidationError("driver_id", "required")
	}
	if input.DeliveryDate.IsZero() {
		return shared.NewValidationError("delivery_date", "required")
	}
	seen := make(map[int64]bool, len(input.OrderIDs))
	for _, id := range input.OrderIDs {
		if id <= 0 {
			return shared.NewValidationError("order_ids", "must be positive")
		}
		if seen[id] {
			return shared.NewValidationError("order_ids", fmt.Sprintf("order %d listed twice", id))
		}
		seen[id] = true
	}
	loaders := make(map[int64]bool, len(input.LoaderIDs))
	for _, id := range input.LoaderIDs {
		if id <= 0 {
			return shared.NewValidationError("loader_ids", "must be positive")
		}
		if loaders[id] {
			return shared.NewValidationError("loader_ids", fmt.Sprintf("loader %d listed twice", id))
		}
		loaders[id] = true
	}
	return nil
}

// Create bundles pending orders into a scheduled delivery. Stops take route
// positions 1..n in the given order and every order moves to scheduled.
func (s *Service) Create(ctx context.Context, input CreateInput) (Delivery, error) {
	if err := validateCreate(input); err != nil {
		s.metrics.Rejected("delivery.create", "validation")
		return Delivery{}, err
	}
	now := s.now().UTC()
	actor := shared.ActorFromContext(ctx)
	var deliveryID int64
	var totalSacks int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := employees.RequireActive(ctx, tx.Employees(), input.DriverID, employees.RoleDriver); err != nil {
			return err
		}
		for _, id := range input.LoaderIDs {
			if _, err := employees.RequireActive(ctx, tx.Employees(), id, employees.RoleLoader); err != nil {
				return err
			}
		}

		bundled := make([]orders.Order, 0, len(input.OrderIDs))
		for _, id := range input.OrderIDs {
			o, err := tx.Orders().GetOrderForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if o.Status != orders.StatusPendingDelivery {
				return shared.NewPreconditionError("order", id, fmt.Sprintf("must be pending_delivery to be scheduled, status is %s", o.Status))
			}
			bundled = append(bundled, o)
		}
		items, err := tx.Orders().ListOrderItems(ctx, input.OrderIDs)
		if err != nil {
			return err
		}
		totalSacks = orders.TotalQuantity(items)

		deliveryID, err = tx.InsertDelivery(ctx, Delivery{
			Number:       shared.DocNumber(shared.DeliveryPrefix, now),
			DeliveryDate: input.DeliveryDate,
			DriverID:     input.DriverID,
			TruckNumber:  strings.TrimSpace(input.TruckNumber),
			RouteNotes:   strings.TrimSpace(input.RouteNotes),
			Status:       StatusScheduled,
			TotalOrders:  len(bundled),
			TotalSacks:   totalSacks,
			CreatedBy:    actor,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		for i, o := range bundled {
			if err := tx.InsertStop(ctx, Stop{
				DeliveryID: deliveryID,
				OrderID:    o.ID,
				RouteOrder: i + 1,
				Status:     orders.StatusScheduled,
			}); err != nil {
				return fmt.Errorf("insert stop: %w", err)
			}
		}
		for _, id := range input.LoaderIDs {
			if err := tx.InsertWorker(ctx, Worker{DeliveryID: deliveryID, EmployeeID: id, WageEarned: decimal.Zero}); err != nil {
				return fmt.Errorf("insert worker: %w", err)
			}
		}
		for _, o := range bundled {
			o.Status = orders.StatusScheduled
			o.UpdatedAt = now
			if err := tx.Orders().UpdateOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	s.metrics.DeliveryTransition(string(StatusScheduled))
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "delivery.created", "delivery", deliveryID, map[string]any{
		"order_ids":   input.OrderIDs,
		"total_sacks": totalSacks,
		"driver_id":   input.DriverID,
	}))
	return s.repo.GetDelivery(ctx, deliveryID)
}

// ReorderStops rewrites the route of a scheduled delivery. orderIDs must be
// a permutation of the bundled orders.
func (s *Service) ReorderStops(ctx context.Context, id int64, orderIDs []int64) (Delivery, error) {
	err := s.transition(ctx, id, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanReorder() {
			return notAllowed(id, "reorder", d.Status)
		}
		stops, err := tx.ListStops(ctx, id)
		if err != nil {
			return err
		}
		if len(orderIDs) != len(stops) {
			return shared.NewValidationError("order_ids", fmt.Sprintf("expected %d orders, got %d", len(stops), len(orderIDs)))
		}
		byOrder := make(map[int64]Stop, len(stops))
		for _, st := range stops {
			byOrder[st.OrderID] = st
		}
		seen := make(map[int64]bool, len(orderIDs))
		for _, oid := range orderIDs {
			if _, ok := byOrder[oid]; !ok {
				return shared.NewValidationError("order_ids", fmt.Sprintf("order %d is not part of delivery %d", oid, id))
			}
			if seen[oid] {
				return shared.NewValidationError("order_ids", fmt.Sprintf("order %d listed twice", oid))
			}
			seen[oid] = true
		}
		for i, oid := range orderIDs {
			st := byOrder[oid]
			if st.RouteOrder == i+1 {
				continue
			}
			st.RouteOrder = i + 1
			if err := tx.UpdateStop(ctx, st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delivery{}, err
	}
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "delivery.reordered", "delivery", id, map[string]any{
		"order_ids": orderIDs,
	}))
	return s.repo.GetDelivery(ctx, id)
}

// ============================================================================
// STATE MACHINE
// ============================================================================

// Start sends the truck out. The delivery, every bundled order and every
// stop move to on_delivery, and items not yet booked out leave stock with
// reference "delivery". Any failure, including insufficient stock, leaves
// everything as it was.
func (s *Service) Start(ctx context.Context, id int64) (Delivery, error) {
	now := s.now().UTC()
	actor := shared.ActorFromContext(ctx)
	var moved int
	err := s.transition(ctx, id, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanStart() {
			return notAllowed(id, "start", d.Status)
		}
		d.Status = StatusOnDelivery
		d.StartedAt = &now
		d.UpdatedAt = now
		if err := tx.UpdateDelivery(ctx, d); err != nil {
			return err
		}

		stops, err := tx.ListStops(ctx, id)
		if err != nil {
			return err
		}
		var deduct []int64
		for i := range stops {
			o, err := tx.Orders().GetOrderForUpdate(ctx, stops[i].OrderID)
			if err != nil {
				return err
			}
			if !o.StockDeducted {
				deduct = append(deduct, o.ID)
				o.StockDeducted = true
				stops[i].StockDeducted = true
			}
			o.Status = orders.StatusOnDelivery
			o.UpdatedAt = now
			if err := tx.Orders().UpdateOrder(ctx, o); err != nil {
				return err
			}
		}
		for _, st := range stops {
			st.Status = orders.StatusOnDelivery
			if err := tx.UpdateStop(ctx, st); err != nil {
				return err
			}
		}

		moved = 0
		if len(deduct) == 0 {
			return nil
		}
		items, err := tx.Orders().ListOrderItems(ctx, deduct)
		if err != nil {
			return err
		}
		moved = len(items)
		return orders.MoveStock(ctx, tx.Stock(), items, -1, inventory.LogTypeOut, inventory.RefDelivery, id, actor, now)
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.Rejected("delivery.start", "insufficient_stock")
		}
		return Delivery{}, err
	}
	s.metrics.DeliveryTransition(string(StatusOnDelivery))
	s.metrics.StockMovement(string(inventory.LogTypeOut), moved)
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "delivery.started", "delivery", id, nil))
	return s.repo.GetDelivery(ctx, id)
}

// MarkStopDelivered records proof of delivery for one order of a running
// delivery and marks the order delivered.
func (s *Service) MarkStopDelivered(ctx context.Context, id, orderID int64, input MarkDeliveredInput) (Delivery, error) {
	recipient := strings.TrimSpace(input.RecipientName)
	if recipient == "" {
		return Delivery{}, shared.NewValidationError("recipient_name", "required")
	}
	now := s.now().UTC()
	deliveredAt := now
	if input.DeliveredAt != nil {
		deliveredAt = input.DeliveredAt.UTC()
	}
	err := s.transition(ctx, id, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != StatusOnDelivery {
			return notAllowed(id, "deliver an order of", d.Status)
		}
		stops, err := tx.ListStops(ctx, id)
		if err != nil {
			return err
		}
		var stop *Stop
		for i := range stops {
			if stops[i].OrderID == orderID {
				stop = &stops[i]
				break
			}
		}
		if stop == nil {
			return fmt.Errorf("order %d is not part of delivery %d: %w", orderID, id, shared.ErrNotFound)
		}
		if stop.Status != orders.StatusOnDelivery {
			return shared.NewPreconditionError("order", orderID, fmt.Sprintf("stop is %s, not on_delivery", stop.Status))
		}
		stop.Status = orders.StatusDelivered
		stop.DeliveredAt = &deliveredAt
		stop.RecipientName = recipient
		if err := tx.UpdateStop(ctx, *stop); err != nil {
			return err
		}
		o, err := tx.Orders().GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		o.Status = orders.StatusDelivered
		o.UpdatedAt = now
		return tx.Orders().UpdateOrder(ctx, o)
	})
	if err != nil {
		return Delivery{}, err
	}
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "delivery.stop_delivered", "delivery", id, map[string]any{
		"order_id":  orderID,
		"recipient": recipient,
	}))
	return s.repo.GetDelivery(ctx, id)
}

// Complete closes a delivery whose stops are all delivered and settles
// loader wages: total sacks are split evenly and paid per sack.
func (s *Service) Complete(ctx context.Context, id int64) (Delivery, error) {
	now := s.now().UTC()
	err := s.transition(ctx, id, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanComplete() {
			return notAllowed(id, "complete", d.Status)
		}
		stops, err := tx.ListStops(ctx, id)
		if err != nil {
			return err
		}
		for _, st := range stops {
			if st.Status != orders.StatusDelivered {
				return shared.NewPreconditionError("delivery", id, "not all orders delivered")
			}
		}
		workers, err := tx.ListWorkers(ctx, id)
		if err != nil {
			return err
		}
		shares := SplitSacks(d.TotalSacks, len(workers))
		for i, w := range workers {
			w.SacksLoaded = shares[i]
			w.WageEarned = s.wagePerSack.Mul(decimal.NewFromInt(int64(shares[i])))
			if err := tx.UpdateWorker(ctx, w); err != nil {
				return err
			}
		}
		d.Status = StatusDelivered
		d.CompletedAt = &now
		d.UpdatedAt = now
		return tx.UpdateDelivery(ctx, d)
	})
	if err != nil {
		return Delivery{}, err
	}
	s.metrics.DeliveryTransition(string(StatusDelivered))
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "delivery.completed", "delivery", id, nil))
	return s.repo.GetDelivery(ctx, id)
}

// Cancel stops a scheduled or running delivery. Undelivered stops are
// cancelled and their orders go back to pending_delivery; stock this
// delivery booked out for them is restored with reference
// "delivery_cancel". Delivered stops are left alone.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (Delivery, error) {
	now := s.now().UTC()
	actor := shared.ActorFromContext(ctx)
	var restored int
	err := s.transition(ctx, id, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanCancel() {
			return notAllowed(id, "cancel", d.Status)
		}
		stops, err := tx.ListStops(ctx, id)
		if err != nil {
			return err
		}
		var restore []int64
		for _, st := range stops {
			if st.Status == orders.StatusDelivered {
				continue
			}
			o, err := tx.Orders().GetOrderForUpdate(ctx, st.OrderID)
			if err != nil {
				return err
			}
			if st.StockDeducted {
				restore = append(restore, o.ID)
				o.StockDeducted = false
				st.StockDeducted = false
			}
			o.Status = orders.StatusPendingDelivery
			o.UpdatedAt = now
			if err := tx.Orders().UpdateOrder(ctx, o); err != nil {
				return err
			}
			st.Status = orders.StatusCancelled
			if err := tx.UpdateStop(ctx, st); err != nil {
				return err
			}
		}
		restored = 0
		if len(restore) > 0 {
			items, err := tx.Orders().ListOrderItems(ctx, restore)
			if err != nil {
				return err
			}
			if err := orders.MoveStock(ctx, tx.Stock(), items, 1, inventory.LogTypeIn, inventory.RefDeliveryCancel, id, actor, now); err != nil {
				return err
			}
			restored = len(items)
		}
		d.Status = StatusCancelled
		d.CancelReason = strings.TrimSpace(reason)
		d.CancelledAt = &now
		d.UpdatedAt = now
		return tx.UpdateDelivery(ctx, d)
	})
	if err != nil {
		return Delivery{}, err
	}
	s.metrics.DeliveryTransition(string(StatusCancelled))
	s.metrics.StockMovement(string(inventory.LogTypeIn), restored)
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "delivery.cancelled", "delivery", id, map[string]any{
		"reason": reason,
	}))
	return s.repo.GetDelivery(ctx, id)
}

// ============================================================================
// QUERIES
// ============================================================================

// Get returns a delivery with stops and workers.
func (s *Service) Get(ctx context.Context, id int64) (Delivery, error) {
	return s.repo.GetDelivery(ctx, id)
}

// List lists deliveries.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Delivery, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.NewValidationError("status", "unknown delivery status")
	}
	return s.repo.ListDeliveries(ctx, filter)
}
