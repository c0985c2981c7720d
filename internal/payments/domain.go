// Package payments records payments against orders and keeps the order's
// payment status and the store's tempo debt in step.
package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrodistri/agrodistri/internal/orders"
)

// Method is how a payment was received.
type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "transfer"
)

// IsValid checks if the method is valid.
func (m Method) IsValid() bool {
	return m == MethodCash || m == MethodTransfer
}

// Payment is one receipt against an order.
type Payment struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         Method          `json:"payment_method"`
	PaymentDate    time.Time       `json:"payment_date"`
	Notes          string          `json:"notes,omitempty"`
	IdempotencyKey string          `json:"-"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AddInput describes a payment to record.
type AddInput struct {
	OrderID        int64           `json:"-"`
	Amount         decimal.Decimal `json:"amount"`
	Method         Method          `json:"payment_method" validate:"required,oneof=cash transfer"`
	PaymentDate    *time.Time      `json:"payment_date,omitempty"`
	Notes          string          `json:"notes" validate:"max=500"`
	IdempotencyKey string          `json:"-"`
}

// Summary is the payment position of an order.
type Summary struct {
	OrderID       int64                `json:"order_id"`
	PaymentMethod orders.PaymentMethod `json:"order_payment_method"`
	Total         decimal.Decimal      `json:"total_amount"`
	TotalPaid     decimal.Decimal      `json:"total_paid"`
	Remaining     decimal.Decimal      `json:"remaining"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
	Payments      []Payment            `json:"payments"`
}

// Receipt is the outcome of AddPayment.
type Receipt struct {
	Payment Payment `json:"payment"`
	Summary Summary `json:"summary"`
}

// Summarize derives totals from an order and its payments. Remaining goes
// negative on overpayment.
func Summarize(o orders.Order, payments []Payment) Summary {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	if payments == nil {
		payments = []Payment{}
	}
	return Summary{
		OrderID:       o.ID,
		PaymentMethod: o.PaymentMethod,
		Total:         o.TotalAmount,
		TotalPaid:     paid,
		Remaining:     o.TotalAmount.Sub(paid),
		PaymentStatus: orders.DerivePaymentStatus(o.TotalAmount, paid),
		Payments:      payments,
	}
}
