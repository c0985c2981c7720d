package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agrodistri/agrodistri/internal/observability"
	"github.com/agrodistri/agrodistri/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	ListStockLogs(ctx context.Context, productID int64, limit int) ([]StockLog, error)
}

// Service coordinates product and stock ledger operations.
type Service struct {
	repo     RepositoryPort
	activity shared.ActivityRecorder
	logger   *slog.Logger
	metrics  *observability.Lifecycle
	now      func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Logger  *slog.Logger
	Metrics *observability.Lifecycle
	Now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, activity shared.ActivityRecorder, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, activity: activity, logger: logger, metrics: cfg.Metrics, now: now}
}

// CreateProduct inserts a product and books any initial stock through the
// ledger so the log carries the full history.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Product{}, shared.NewValidationError("name", "required")
	}
	if input.InitialStock < 0 {
		return Product{}, shared.NewValidationError("initial_stock", "must not be negative")
	}
	if input.MinStock < 0 {
		return Product{}, shared.NewValidationError("min_stock", "must not be negative")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return Product{}, shared.NewValidationError("price", "must not be negative")
	}
	now := s.now().UTC()
	actor := shared.ActorFromContext(ctx)
	var productID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProduct(ctx, Product{
			Name:         input.Name,
			Type:         input.Type,
			Unit:         input.Unit,
			MinStock:     input.MinStock,
			CostPrice:    input.CostPrice,
			SellingPrice: input.SellingPrice,
			IsActive:     true,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		productID = id
		if input.InitialStock == 0 {
			return nil
		}
		_, err = ApplyDelta(ctx, tx, Movement{
			ProductID:     id,
			Delta:         input.InitialStock,
			Type:          LogTypeIn,
			ReferenceType: RefInitial,
			Notes:         "initial stock",
			Actor:         actor,
			At:            now,
		})
		return err
	})
	if err != nil {
		return Product{}, err
	}
	if input.InitialStock > 0 {
		s.metrics.StockMovement(string(LogTypeIn), 1)
	}
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "product.created", "product", productID, map[string]any{
		"name":          input.Name,
		"initial_stock": input.InitialStock,
	}))
	return s.repo.GetProduct(ctx, productID)
}

// StockIn books received goods.
func (s *Service) StockIn(ctx context.Context, input StockInInput) (StockLog, error) {
	if input.ProductID == 0 {
		return StockLog{}, shared.NewValidationError("product_id", "required")
	}
	if input.Quantity <= 0 {
		return StockLog{}, shared.NewValidationError("quantity", "must be positive")
	}
	return s.post(ctx, Movement{
		ProductID:     input.ProductID,
		Delta:         input.Quantity,
		Type:          LogTypeIn,
		ReferenceType: RefManual,
		Notes:         input.Notes,
	}, "stock.in")
}

// Adjust books a manual correction.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (StockLog, error) {
	if input.ProductID == 0 {
		return StockLog{}, shared.NewValidationError("product_id", "required")
	}
	if input.Delta == 0 {
		return StockLog{}, shared.NewValidationError("delta", "must not be zero")
	}
	switch {
	case input.Reason == LogTypeAdjustment:
	case input.Reason.IsShrinkage():
		if input.Delta > 0 {
			return StockLog{}, shared.NewValidationError("delta", fmt.Sprintf("%s adjustments must be negative", input.Reason))
		}
	default:
		return StockLog{}, shared.NewValidationError("reason", "must be one of adjustment, damaged, lost, expired")
	}
	return s.post(ctx, Movement{
		ProductID:     input.ProductID,
		Delta:         input.Delta,
		Type:          input.Reason,
		ReferenceType: RefManual,
		Notes:         input.Notes,
	}, "stock.adjusted")
}

func (s *Service) post(ctx context.Context, m Movement, action string) (StockLog, error) {
	m.Actor = shared.ActorFromContext(ctx)
	m.At = s.now().UTC()
	var log StockLog
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		log, err = ApplyDelta(ctx, tx, m)
		return err
	})
	if err != nil {
		return StockLog{}, err
	}
	s.metrics.StockMovement(string(log.Type), 1)
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, action, "product", log.ProductID, map[string]any{
		"type":         string(log.Type),
		"quantity":     log.Quantity,
		"stock_before": log.StockBefore,
		"stock_after":  log.StockAfter,
	}))
	return log, nil
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// ListStockLogs lists the ledger of one product.
func (s *Service) ListStockLogs(ctx context.Context, productID int64, limit int) ([]StockLog, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListStockLogs(ctx, productID, limit)
}

// LowStock returns active products under their minimum stock.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx, ProductFilter{ActiveOnly: true, LowStockOnly: true})
}
