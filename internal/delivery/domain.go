// Package delivery bundles pending orders into truck runs and drives them
// through scheduled, on_delivery, delivered and cancelled.
package delivery

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/orders"
)

// ============================================================================
// DELIVERY STATUS
// ============================================================================

// Status represents the lifecycle of a delivery run.
type Status string

const (
	StatusScheduled  Status = "scheduled"   // Orders bundled, truck not yet left
	StatusOnDelivery Status = "on_delivery" // Truck out, stock deducted
	StatusDelivered  Status = "delivered"   // Every stop delivered
	StatusCancelled  Status = "cancelled"   // Undelivered orders released
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusOnDelivery, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanStart checks if the delivery can leave.
func (s Status) CanStart() bool {
	return s == StatusScheduled
}

// CanReorder checks if the route may still change.
func (s Status) CanReorder() bool {
	return s == StatusScheduled
}

// CanComplete checks if the delivery may be closed.
func (s Status) CanComplete() bool {
	return s == StatusOnDelivery
}

// CanCancel checks if the delivery can be cancelled.
func (s Status) CanCancel() bool {
	return s == StatusScheduled || s == StatusOnDelivery
}

// ============================================================================
// ENTITIES
// ============================================================================

// Delivery is one truck run.
type Delivery struct {
	ID           int64      `json:"id"`
	Number       string     `json:"delivery_number"`
	DeliveryDate time.Time  `json:"delivery_date"`
	DriverID     int64      `json:"driver_id"`
	TruckNumber  string     `json:"truck_number,omitempty"`
	RouteNotes   string     `json:"route_notes,omitempty"`
	Status       Status     `json:"status"`
	TotalOrders  int        `json:"total_orders"`
	TotalSacks   int        `json:"total_sacks"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Stops        []Stop     `json:"stops,omitempty"`
	Workers      []Worker   `json:"workers,omitempty"`
}

// Stop binds an order to a delivery at a route position. StockDeducted is
// set when this delivery booked the order's items out of stock.
type Stop struct {
	DeliveryID    int64         `json:"delivery_id"`
	OrderID       int64         `json:"order_id"`
	RouteOrder    int           `json:"route_order"`
	Status        orders.Status `json:"delivery_status"`
	StockDeducted bool          `json:"stock_deducted"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
	RecipientName string        `json:"recipient_name,omitempty"`
}

// Worker is a loader assigned to a delivery.
type Worker struct {
	DeliveryID  int64           `json:"delivery_id"`
	EmployeeID  int64           `json:"employee_id"`
	SacksLoaded int             `json:"sacks_loaded"`
	WageEarned  decimal.Decimal `json:"wage_earned"`
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// CreateInput bundles orders into a new delivery. OrderIDs are visited in
// route order.
type CreateInput struct {
	OrderIDs     []int64   `json:"order_ids" validate:"required,min=1,dive,gt=0"`
	DriverID     int64     `json:"driver_id" validate:"required"`
	DeliveryDate time.Time `json:"delivery_date" validate:"required"`
	TruckNumber  string    `json:"truck_number" validate:"max=20"`
	RouteNotes   string    `json:"route_notes" validate:"max=500"`
	LoaderIDs    []int64   `json:"loader_ids" validate:"dive,gt=0"`
}

// MarkDeliveredInput is the proof of delivery for one stop.
type MarkDeliveredInput struct {
	RecipientName string     `json:"recipient_name" validate:"required,max=120"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	Status   Status
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// SplitSacks divides total sacks across n loaders. Earlier loaders take the
// remainder, one sack each.
func SplitSacks(total, n int) []int {
	if n <= 0 {
		return nil
	}
	shares := make([]int, n)
	base, rem := total/n, total%n
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}
