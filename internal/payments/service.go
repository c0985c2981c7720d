package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/orders"
	"github.com/agrodistri/agrodistri/internal/platform/lock"
	"github.com/agrodistri/agrodistri/internal/shared"
	"github.com/agrodistri/agrodistri/internal/stores"
)

// idempotencyModule scopes payment keys in the idempotency store.
const idempotencyModule = "payments"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	ListPayments(ctx context.Context, orderID int64) ([]Payment, error)
}

// Service records payments.
type Service struct {
	repo        RepositoryPort
	activity    shared.ActivityRecorder
	idempotency shared.IdempotencyGuard
	locker      lock.Locker
	lockTTL     time.Duration
	logger      *slog.Logger
	metrics     *observability.Lifecycle
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Idempotency shared.IdempotencyGuard
	Locker      lock.Locker
	LockTTL     time.Duration
	Logger      *slog.Logger
	Metrics     *observability.Lifecycle
	Now         func() time.Time
}

// NewService constructs the payment service.
func NewService(repo RepositoryPort, activity shared.ActivityRecorder, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		activity:    activity,
		idempotency: cfg.Idempotency,
		locker:      cfg.Locker,
		lockTTL:     cfg.LockTTL,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
	if s.locker == nil {
		s.locker = lock.NoopLocker{}
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func validateAdd(input AddInput) error {
	if input.OrderID <= 0 {
		return shared.NewValidationError("order_id", "required")
	}
	if !input.Amount.IsPositive() {
		return shared.NewValidationError("amount", "must be greater than zero")
	}
	if !input.Method.IsValid() {
		return shared.NewValidationError("payment_method", "must be cash or transfer")
	}
	if len(input.IdempotencyKey) > shared.MaxIdempotencyKeyLen {
		return shared.NewValidationError("idempotency_key", fmt.Sprintf("must be at most %d characters", shared.MaxIdempotencyKeyLen))
	}
	return nil
}

// AddPayment records a payment and recomputes the order's payment status
// from the sum of all its payments. Payments on tempo orders reduce the
// store's debt by the amount, floored at zero. Overpayment is accepted.
//
// A non-empty IdempotencyKey is reserved before any write; a replayed key
// fails with shared.ErrIdempotencyConflict.
func (s *Service) AddPayment(ctx context.Context, input AddInput) (Receipt, error) {
	input.Notes = strings.TrimSpace(input.Notes)
	if err := validateAdd(input); err != nil {
		s.metrics.Rejected("payment.add", "validation")
		return Receipt{}, err
	}
	release, err := s.locker.Acquire(ctx, shared.PaymentLockKey(input.OrderID), s.lockTTL)
	if err != nil {
		return Receipt{}, err
	}
	defer release()

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			return Receipt{}, err
		}
	}

	now := s.now().UTC()
	paidAt := now
	if input.PaymentDate != nil {
		paidAt = input.PaymentDate.UTC()
	}
	payment := Payment{
		OrderID:        input.OrderID,
		Amount:         input.Amount,
		Method:         input.Method,
		PaymentDate:    paidAt,
		Notes:          input.Notes,
		IdempotencyKey: input.IdempotencyKey,
		CreatedBy:      shared.ActorFromContext(ctx),
		CreatedAt:      now,
	}
	var summary Summary
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.Orders().GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == orders.StatusCancelled {
			return shared.NewPreconditionError("order", order.ID, "cannot pay a cancelled order")
		}
		payment.ID, err = tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		history, err := tx.ListPayments(ctx, order.ID)
		if err != nil {
			return err
		}
		summary = Summarize(order, history)
		if order.PaymentStatus != summary.PaymentStatus {
			order.PaymentStatus = summary.PaymentStatus
			order.UpdatedAt = now
			if err := tx.Orders().UpdateOrder(ctx, order); err != nil {
				return err
			}
		}
		if order.PaymentMethod == orders.PaymentTempo {
			if _, err := stores.AdjustDebt(ctx, tx.Stores(), order.StoreID, input.Amount.Neg(), now); err != nil {
				return fmt.Errorf("reduce store debt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, input.IdempotencyKey, idempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return Receipt{}, err
	}
	s.metrics.Payment(string(input.Method), string(summary.PaymentStatus))
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "payment.added", "order", input.OrderID, map[string]any{
		"payment_id":     payment.ID,
		"amount":         input.Amount.String(),
		"payment_status": string(summary.PaymentStatus),
	}))
	return Receipt{Payment: payment, Summary: summary}, nil
}

// Summary returns totals and the payment history of an order.
func (s *Service) Summary(ctx context.Context, orderID int64) (Summary, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Summary{}, err
	}
	history, err := s.repo.ListPayments(ctx, orderID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(order, history), nil
}
