package stores

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStore(ctx context.Context, id int64) (Store, error)
	ListStores(ctx context.Context, filter StoreFilter) ([]Store, error)
	ListCustomPrices(ctx context.Context, storeID int64) ([]CustomPrice, error)
}

// Service provides store operations.
type Service struct {
	repo     RepositoryPort
	activity shared.ActivityRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo RepositoryPort, activity shared.ActivityRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, activity: activity, logger: logger, now: time.Now}
}

// CreateStore inserts an active store with zero debt.
func (s *Service) CreateStore(ctx context.Context, input CreateStoreInput) (Store, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Store{}, shared.NewValidationError("name", "required")
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.InsertStore(ctx, Store{
			Name:      input.Name,
			Owner:     strings.TrimSpace(input.Owner),
			Phone:     strings.TrimSpace(input.Phone),
			Address:   strings.TrimSpace(input.Address),
			Region:    strings.TrimSpace(input.Region),
			IsActive:  true,
			CreatedAt: s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return Store{}, fmt.Errorf("create store: %w", err)
	}
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "store.created", "store", id, map[string]any{"name": input.Name}))
	return s.repo.GetStore(ctx, id)
}

// GetStore returns a store.
func (s *Service) GetStore(ctx context.Context, id int64) (Store, error) {
	return s.repo.GetStore(ctx, id)
}

// ListStores lists stores.
func (s *Service) ListStores(ctx context.Context, filter StoreFilter) ([]Store, error) {
	return s.repo.ListStores(ctx, filter)
}

// SetCustomPrice stores a price override for one product at one store.
func (s *Service) SetCustomPrice(ctx context.Context, storeID, productID int64, price decimal.Decimal) (CustomPrice, error) {
	if productID == 0 {
		return CustomPrice{}, shared.NewValidationError("product_id", "required")
	}
	if !price.IsPositive() {
		return CustomPrice{}, shared.NewValidationError("price", "must be positive")
	}
	cp := CustomPrice{StoreID: storeID, ProductID: productID, Price: price, UpdatedAt: s.now().UTC()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetStoreForUpdate(ctx, storeID); err != nil {
			return err
		}
		return tx.UpsertCustomPrice(ctx, cp)
	})
	if err != nil {
		return CustomPrice{}, err
	}
	shared.RecordActivity(ctx, s.activity, s.logger, shared.NewActivity(ctx, "store.price_set", "store", storeID, map[string]any{
		"product_id": productID,
		"price":      price.String(),
	}))
	return cp, nil
}

// ListCustomPrices lists the price overrides of a store.
func (s *Service) ListCustomPrices(ctx context.Context, storeID int64) ([]CustomPrice, error) {
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListCustomPrices(ctx, storeID)
}
