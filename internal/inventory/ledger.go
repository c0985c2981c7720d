package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/agrodistri/agrodistri/internal/shared"
)

// ApplyDelta is the only path that changes Product.Stock. It locks the
// product row through tx, refuses to go below zero, then writes the new stock
// and the matching log row. Both writes share tx, so a failure in either
// leaves neither behind.
func ApplyDelta(ctx context.Context, tx TxRepository, m Movement) (StockLog, error) {
	if m.Delta == 0 {
		return StockLog{}, shared.NewValidationError("quantity", "stock delta must not be zero")
	}
	if !m.Type.IsValid() {
		return StockLog{}, shared.NewValidationError("type", fmt.Sprintf("unknown stock log type %q", m.Type))
	}
	product, err := tx.GetProductForUpdate(ctx, m.ProductID)
	if err != nil {
		return StockLog{}, err
	}
	before := product.Stock
	after := before + m.Delta
	if after < 0 {
		return StockLog{}, &shared.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   before,
			Requested:   -m.Delta,
		}
	}
	at := m.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := tx.UpdateProductStock(ctx, product.ID, after, at); err != nil {
		return StockLog{}, err
	}
	log := StockLog{
		ProductID:     product.ID,
		Type:          m.Type,
		Quantity:      m.Delta,
		StockBefore:   before,
		StockAfter:    after,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		Notes:         m.Notes,
		CreatedBy:     m.Actor,
		CreatedAt:     at,
	}
	id, err := tx.InsertStockLog(ctx, log)
	if err != nil {
		return StockLog{}, err
	}
	log.ID = id
	return log, nil
}

// LockAvailable locks each requested product and verifies its summed
// quantity fits current stock, without writing. order fixes the lock order
// so concurrent callers lock rows in the same sequence.
func LockAvailable(ctx context.Context, tx TxRepository, requested map[int64]int, order []int64) (map[int64]Product, error) {
	products := make(map[int64]Product, len(order))
	for _, productID := range order {
		qty := requested[productID]
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return nil, err
		}
		if qty > product.Stock {
			return nil, &shared.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   qty,
			}
		}
		products[productID] = product
	}
	return products, nil
}
