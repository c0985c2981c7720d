package stores

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AdjustDebt adds delta to the store's debt, flooring the result at zero.
// The store row is locked through tx for the rest of the transaction.
func AdjustDebt(ctx context.Context, tx TxRepository, storeID int64, delta decimal.Decimal, at time.Time) (DebtChange, error) {
	store, err := tx.GetStoreForUpdate(ctx, storeID)
	if err != nil {
		return DebtChange{}, err
	}
	after := store.Debt.Add(delta)
	if after.IsNegative() {
		after = decimal.Zero
	}
	change := DebtChange{StoreID: storeID, Before: store.Debt, After: after}
	if after.Equal(store.Debt) {
		return change, nil
	}
	if err := tx.UpdateStoreDebt(ctx, storeID, after, at); err != nil {
		return DebtChange{}, err
	}
	return change, nil
}

// ResolvePrice applies the price precedence: explicit override, then the
// store's custom price, then the product selling price.
func ResolvePrice(override *decimal.Decimal, custom map[int64]decimal.Decimal, productID int64, selling decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	if p, ok := custom[productID]; ok {
		return p
	}
	return selling
}
