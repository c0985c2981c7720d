package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	stock := &InsufficientStockError{ProductID: 7, ProductName: "Urea 50kg", Available: 10, Requested: 20}
	wrapped := fmt.Errorf("create order: %w", stock)

	require.ErrorIs(t, wrapped, ErrInsufficientStock)
	var target *InsufficientStockError
	require.ErrorAs(t, wrapped, &target)
	require.Equal(t, 10, target.Available)
	require.Contains(t, stock.Error(), "Urea 50kg")

	require.ErrorIs(t, NewValidationError("items", "at least one item is required"), ErrValidation)
	require.ErrorIs(t, NewPreconditionError("delivery", 3, "not all orders delivered"), ErrPrecondition)
	require.NotErrorIs(t, NewPreconditionError("delivery", 3, "x"), ErrValidation)
}

func TestBackendKeepsDomainErrors(t *testing.T) {
	require.Nil(t, Backend("op", nil))

	notFound := fmt.Errorf("get store: %w", ErrNotFound)
	require.Same(t, notFound, Backend("get store", notFound))

	raw := errors.New("connection reset")
	err := Backend("insert order", raw)
	require.ErrorIs(t, err, ErrBackend)
	require.ErrorIs(t, err, raw)
	require.Equal(t, "insert order: connection reset", err.Error())
}
