package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/inventory"
	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrderItems(ctx context.Context, orderIDs []int64) ([]Item, error)
	SumPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// Service creates, cancels and reads orders.
type Service struct {
	repo     RepositoryPort
	activity shared.ActivityRecorder
	policy   StockPolicy
	logger   *slog.Logger
	metrics  *observability.Lifecycle
	now      func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	StockPolicy StockPolicy
	Logger      *slog.Logger
	Metrics     *observability.Lifecycle
	Now         func() time.Time
}

// NewService constructs the order service.
func NewService(repo RepositoryPort, activity shared.ActivityRecorder, cfg ServiceConfig) *Service {
	policy := cfg.StockPolicy
	if policy == "" {
		policy = StockOnDelivery
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, activity: activity, policy: policy, logger: logger, metrics: cfg.Metrics, now: now}
}

// Policy reports the configured stock policy.
func (s *Service) Policy() StockPolicy {
	return s.policy
}

func validateCreate(input CreateInput) error {
	if input.StoreID == 0 {
		return shared.NewValidationError("store_id", "required")
	}
	if len(input.Items) == 0 {
		return shared.NewValidationError("items", "at least one item is required")
	}
	if !input.PaymentMethod.IsValid() {
		return shared.NewValidationError("payment_method", "must be cash, transfer or tempo")
	}
	if input.DueDate != nil && input.PaymentMethod != PaymentTempo {
		return shared.NewValidationError("due_date", "only tempo orders carry a due date")
	}
	for i, it := range input.Items {
		if it.ProductID == 0 {
			return shared.NewValidationError(fmt.Sprintf("items[%d].product_id", i), "required")
		}
		if it.Quantity <= 0 {
			return shared.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		if it.Price != nil && it.Price.IsNegative() {
			return shared.NewValidationError(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
	}
	return nil
}

// Create validates stock and store, prices each line and inserts the order
// with its items in one transaction. Tempo orders add their total to the
// store's debt. Under StockOnOrder the items are booked out of stock here.
func (s *Service) Create(ctx context.Context, input CreateInput) (Detail, error) {
	if err := validateCreate(input); err != nil {
		s.metrics.Rejected("order.create", "validation")
		return Detail{}, err
	}
	now := s.now().UTC()
	actor := shared.ActorFromContext(ctx)

	requested := make(map[int64]int)
	var productOrder []int64
	for _, it := range input.Items {
		if _, seen := requested[it.ProductID]; !seen {
			productOrder = append(productOrder, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
	}

	var orderID int64
	var total decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		store, err := tx.Stores().GetStoreForUpdate(ctx, input.StoreID)
		if err != nil {
			return err
		}
		if !store.IsActive {
			return shared.NewValidationError("store_id", "store is not active")
		}
		custom, err := tx.Stores().GetCustomPrices(ctx, store.ID)
		if err != nil {
			return err
		}
		products, err := inventory.LockAvailable(ctx, tx.Stock(), requested, productOrder)
		if err != nil {
			return err
		}

		items := make([]Item, 0, len(input.Items))
		total = decimal.Zero
		for i, in := range input.Items {
			p := products[in.ProductID]
			if !p.IsActive {
				return shared.NewValidationError(fmt.Sprintf("items[%d].product_id", i), fmt.Sprintf("product %s is not active", p.Name))
			}
			price := stores.ResolvePrice(in.Price, custom, p.ID, p.SellingPrice)
			subtotal := price.Mul(decimal.NewFromInt(int64(in.Quantity)))
			total = total.Add(subtotal)
			items = append(items, Item{ProductID: p.ID, Quantity: in.Quantity, Price: price, Subtotal: subtotal})
		}

		order := Order{
			Number:        shared.DocNumber(shared.OrderPrefix, now),
			StoreID:       store.ID,
			TotalAmount:   total,
			Status:        StatusPendingDelivery,
			PaymentMethod: input.PaymentMethod,
			PaymentStatus: DerivePaymentStatus(total, decimal.Zero),
			DueDate:       input.DueDate,
			Notes:         strings.TrimSpace(input.Notes),
			StockDeducted: s.policy == StockOnOrder,
			CreatedBy:     actor,
			CreatedAt:     now,
		}
		orderID, err = tx.InsertOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, it := range items {
			it.OrderID = orderID
			if _, err := tx.InsertOrderItem(ctx, it); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if order.StockDeducted {
			if err := MoveStock(ctx, tx.Stock(), items, -1, inventory.LogTypeOut, inventory.RefOrder, orderID, actor, now); err != nil {
				return err
			}
		}
		if order.PaymentMethod == PaymentTempo && total.IsPositive() {
			if _, err := stores.AdjustDebt(ctx, tx.Stores(), store.ID, total, now); err != nil {
				return fmt.Errorf("add store debt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.metrics.Rejected("order.create", "insufficient_stock")
		}
		return Detail{}, err
	}

	s.metrics.OrderEvent("created", string(input.PaymentMethod))
	if s.policy == StockOnOrder {
		s.metrics.StockMovement(string(inventory.LogTypeOut), len(input.Items))
	}
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "order.created", "order", orderID, map[string]any{
		"store_id":       input.StoreID,
		"total_amount":   total.String(),
		"payment_method": string(input.PaymentMethod),
	}))
	return s.Get(ctx, orderID)
}

// Cancel cancels an order that is still waiting for a delivery. Stock booked
// out at order time is restored; for tempo orders the unpaid remainder is
// taken off the store's debt.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (Detail, error) {
	now := s.now().UTC()
	actor := shared.ActorFromContext(ctx)
	var restored int
	var method PaymentMethod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanCancel() {
			return shared.NewPreconditionError("order", id, fmt.Sprintf("only pending_delivery orders can be cancelled, status is %s", order.Status))
		}
		method = order.PaymentMethod
		restored = 0
		if order.StockDeducted {
			items, err := tx.ListOrderItems(ctx, []int64{id})
			if err != nil {
				return err
			}
			if err := MoveStock(ctx, tx.Stock(), items, 1, inventory.LogTypeIn, inventory.RefOrderCancel, id, actor, now); err != nil {
				return err
			}
			restored = len(items)
		}
		if order.PaymentMethod == PaymentTempo {
			paid, err := tx.SumPayments(ctx, id)
			if err != nil {
				return err
			}
			if remaining := order.TotalAmount.Sub(paid); remaining.IsPositive() {
				if _, err := stores.AdjustDebt(ctx, tx.Stores(), order.StoreID, remaining.Neg(), now); err != nil {
					return fmt.Errorf("release store debt: %w", err)
				}
			}
		}
		order.Status = StatusCancelled
		order.CancelReason = strings.TrimSpace(reason)
		order.StockDeducted = false
		order.UpdatedAt = now
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return Detail{}, err
	}
	s.metrics.OrderEvent("cancelled", string(method))
	s.metrics.StockMovement(string(inventory.LogTypeIn), restored)
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "order.cancelled", "order", id, map[string]any{
		"reason": reason,
	}))
	return s.Get(ctx, id)
}

// Get returns an order with items and its payment position.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.repo.ListOrderItems(ctx, []int64{id})
	if err != nil {
		return Detail{}, err
	}
	paid, err := s.repo.SumPayments(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if items == nil {
		items = []Item{}
	}
	return Detail{Order: order, Items: items, TotalPaid: paid, Remaining: order.TotalAmount.Sub(paid)}, nil
}

// List returns a page of orders and the total matching count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, shared.NewValidationError("status", "unknown order status")
	}
	return s.repo.ListOrders(ctx, filter)
}

// MoveStock applies sign*quantity for every item through the stock ledger.
func MoveStock(ctx context.Context, tx inventory.TxRepository, items []Item, sign int, logType inventory.LogType, ref string, refID int64, actor string, at time.Time) error {
	for _, it := range items {
		_, err := inventory.ApplyDelta(ctx, tx, inventory.Movement{
			ProductID:     it.ProductID,
			Delta:         sign * it.Quantity,
			Type:          logType,
			ReferenceType: ref,
			ReferenceID:   refID,
			Actor:         actor,
			At:            at,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
