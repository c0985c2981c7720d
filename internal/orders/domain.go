// Package orders creates and cancels customer orders and tracks their
// delivery and payment status.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// STATUS
// ============================================================================

// Status is the delivery lifecycle status of an order.
type Status string

const (
	StatusPendingDelivery Status = "pending_delivery"
	StatusScheduled       Status = "scheduled"
	StatusOnDelivery      Status = "on_delivery"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingDelivery, StatusScheduled, StatusOnDelivery, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanCancel reports whether the order itself may be cancelled. Orders bound
// to a delivery are released by cancelling the delivery instead.
func (s Status) CanCancel() bool {
	return s == StatusPendingDelivery
}

// PaymentMethod is how the store settles an order.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	// PaymentTempo defers payment; the total is added to the store's debt.
	PaymentTempo PaymentMethod = "tempo"
)

// IsValid checks if the method is valid.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentTempo:
		return true
	default:
		return false
	}
}

// PaymentStatus summarises payments against the order total.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// DerivePaymentStatus returns paid when paid covers total, partial when
// anything was paid, unpaid otherwise.
func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}

// StockPolicy decides when ordered goods leave stock.
type StockPolicy string

const (
	// StockOnDelivery deducts stock when the delivery carrying the order starts.
	StockOnDelivery StockPolicy = "on_delivery"
	// StockOnOrder deducts stock when the order is created.
	StockOnOrder StockPolicy = "on_order"
)

// ParseStockPolicy validates a configured policy, defaulting to on_delivery.
func ParseStockPolicy(raw string) (StockPolicy, error) {
	switch StockPolicy(raw) {
	case "", StockOnDelivery:
		return StockOnDelivery, nil
	case StockOnOrder:
		return StockOnOrder, nil
	default:
		return "", fmt.Errorf("orders: unknown stock policy %q", raw)
	}
}

// ============================================================================
// ENTITIES
// ============================================================================

// Order is a store's purchase. TotalAmount is fixed at creation.
// StockDeducted records whether the items are currently booked out of stock.
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"order_number"`
	StoreID       int64           `json:"store_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
	StockDeducted bool            `json:"stock_deducted"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Item is one order line. Price is a snapshot taken at order time.
type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Detail is an order with its items and payment position.
type Detail struct {
	Order
	Items     []Item          `json:"items"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ItemInput is a requested line. Price overrides every other price source.
type ItemInput struct {
	ProductID int64            `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// CreateInput describes a new order.
type CreateInput struct {
	StoreID       int64         `json:"store_id" validate:"required"`
	Items         []ItemInput   `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=cash transfer tempo"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	Notes         string        `json:"notes" validate:"max=500"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status  Status
	StoreID int64
	Limit   int
	Offset  int
}

// TotalQuantity sums item quantities, which are counted in sacks.
func TotalQuantity(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}
