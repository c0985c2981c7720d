package stores

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodistri/agrodistri/internal/shared"
)

type debtTx struct {
	TxRepository
	stores  map[int64]Store
	updates int
}

func (d *debtTx) GetStoreForUpdate(_ context.Context, id int64) (Store, error) {
	s, ok := d.stores[id]
	if !ok {
		return Store{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (d *debtTx) UpdateStoreDebt(_ context.Context, id int64, debt decimal.Decimal, _ time.Time) error {
	s := d.stores[id]
	s.Debt = debt
	d.stores[id] = s
	d.updates++
	return nil
}

func TestAdjustDebtFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	tx := &debtTx{stores: map[int64]Store{1: {ID: 1, Debt: decimal.NewFromInt(200)}}}
	now := time.Now()

	change, err := AdjustDebt(ctx, tx, 1, decimal.NewFromInt(-50), now)
	require.NoError(t, err)
	assert.True(t, change.Before.Equal(decimal.NewFromInt(200)))
	assert.True(t, change.After.Equal(decimal.NewFromInt(150)))

	change, err = AdjustDebt(ctx, tx, 1, decimal.NewFromInt(-500), now)
	require.NoError(t, err)
	assert.True(t, change.After.IsZero())
	assert.True(t, tx.stores[1].Debt.IsZero())

	// Already at zero: nothing to write.
	_, err = AdjustDebt(ctx, tx, 1, decimal.NewFromInt(-1), now)
	require.NoError(t, err)
	assert.Equal(t, 2, tx.updates)

	_, err = AdjustDebt(ctx, tx, 99, decimal.NewFromInt(10), now)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolvePricePrecedence(t *testing.T) {
	selling := decimal.NewFromInt(50)
	custom := map[int64]decimal.Decimal{7: decimal.NewFromInt(45)}
	override := decimal.NewFromInt(40)

	assert.True(t, ResolvePrice(&override, custom, 7, selling).Equal(override))
	assert.True(t, ResolvePrice(nil, custom, 7, selling).Equal(decimal.NewFromInt(45)))
	assert.True(t, ResolvePrice(nil, custom, 8, selling).Equal(selling))
}
