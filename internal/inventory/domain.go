package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// LogType enumerates stock log categories.
type LogType string

const (
	// LogTypeIn represents an inbound movement.
	LogTypeIn LogType = "in"
	// LogTypeOut represents goods leaving the warehouse.
	LogTypeOut LogType = "out"
	// LogTypeAdjustment indicates a manual correction in either direction.
	LogTypeAdjustment LogType = "adjustment"
	LogTypeDamaged    LogType = "damaged"
	LogTypeLost       LogType = "lost"
	LogTypeExpired    LogType = "expired"
)

// IsValid checks if the log type is known.
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeIn, LogTypeOut, LogTypeAdjustment, LogTypeDamaged, LogTypeLost, LogTypeExpired:
		return true
	default:
		return false
	}
}

// IsShrinkage reports whether the type only ever removes stock.
func (t LogType) IsShrinkage() bool {
	return t == LogTypeDamaged || t == LogTypeLost || t == LogTypeExpired
}

// Reference types recorded on stock logs.
const (
	RefInitial        = "initial"
	RefManual         = "manual"
	RefOrder          = "order"
	RefOrderCancel    = "order_cancel"
	RefDelivery       = "delivery"
	RefDeliveryCancel = "delivery_cancel"
)

// Product is a sellable fertilizer item. Stock is counted in sacks.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Unit         string          `json:"unit"`
	Stock        int             `json:"stock"`
	MinStock     int             `json:"min_stock"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLowStock reports whether stock fell under the configured minimum.
func (p Product) IsLowStock() bool {
	return p.Stock < p.MinStock
}

// StockLog is an immutable ledger row. StockAfter always equals
// StockBefore + Quantity.
type StockLog struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	Type          LogType   `json:"type"`
	Quantity      int       `json:"quantity"`
	StockBefore   int       `json:"stock_before"`
	StockAfter    int       `json:"stock_after"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   int64     `json:"reference_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Movement is a signed stock change to apply through the ledger.
type Movement struct {
	ProductID     int64
	Delta         int
	Type          LogType
	ReferenceType string
	ReferenceID   int64
	Notes         string
	Actor         string
	At            time.Time
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	ActiveOnly   bool
	LowStockOnly bool
	Search       string
	Limit        int
	Offset       int
}

// CreateProductInput describes a new product.
type CreateProductInput struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Type         string          `json:"type" validate:"required,max=60"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	MinStock     int             `json:"min_stock" validate:"gte=0"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	InitialStock int             `json:"initial_stock" validate:"gte=0"`
}

// StockInInput records goods received.
type StockInInput struct {
	ProductID int64
	Quantity  int
	Notes     string
}

// AdjustInput records a manual correction. Shrinkage reasons must carry a
// negative delta.
type AdjustInput struct {
	ProductID int64
	Delta     int
	Reason    LogType
	Notes     string
}
