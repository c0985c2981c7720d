// Package reports serves read-only summaries of sales, debts, stock and
// deliveries. Each report kind maps to one handler; results are cached in
// Redis.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind names a report.
type Kind string

const (
	KindSales      Kind = "sales"
	KindDebts      Kind = "debts"
	KindStock      Kind = "stock"
	KindDeliveries Kind = "deliveries"
	KindDashboard  Kind = "dashboard"
)

// Params bound a report to a date range, inclusive on both ends.
type Params struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Params) token() string {
	return p.From.Format(time.DateOnly) + "_" + p.To.Format(time.DateOnly)
}

// SalesRow aggregates non-cancelled orders per payment method.
type SalesRow struct {
	PaymentMethod string          `json:"payment_method"`
	Orders        int             `json:"orders"`
	Total         decimal.Decimal `json:"total"`
	Formatted     string          `json:"total_formatted"`
}

// SalesReport is the sales summary of a date range.
type SalesReport struct {
	Params
	Rows       []SalesRow      `json:"rows"`
	Orders     int             `json:"orders"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Formatted  string          `json:"grand_total_formatted"`
}

// DebtRow is one store with outstanding debt.
type DebtRow struct {
	StoreID   int64           `json:"store_id"`
	Name      string          `json:"name"`
	Region    string          `json:"region"`
	Debt      decimal.Decimal `json:"debt"`
	Formatted string          `json:"debt_formatted"`
}

// DebtReport lists stores owing money, largest debt first.
type DebtReport struct {
	Stores    []DebtRow       `json:"stores"`
	Total     decimal.Decimal `json:"total"`
	Formatted string          `json:"total_formatted"`
}

// StockRow is the stock position of one product.
type StockRow struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
	LowStock  bool   `json:"low_stock"`
}

// StockReport lists active products by name.
type StockReport struct {
	Products      []StockRow `json:"products"`
	LowStockCount int        `json:"low_stock_count"`
	TotalSacks    int        `json:"total_sacks"`
}

// DeliveryRow counts deliveries in one status.
type DeliveryRow struct {
	Status     string `json:"status"`
	Deliveries int    `json:"deliveries"`
	Sacks      int    `json:"sacks"`
}

// DeliveryReport summarises deliveries dated within a range.
type DeliveryReport struct {
	Params
	Rows []DeliveryRow `json:"rows"`
}

// Dashboard bundles every report.
type Dashboard struct {
	Sales      SalesReport    `json:"sales"`
	Debts      DebtReport     `json:"debts"`
	Stock      StockReport    `json:"stock"`
	Deliveries DeliveryReport `json:"deliveries"`
}
