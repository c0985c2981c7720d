// Package stores manages retail stores, their rolling debt balance and
// store-specific selling prices.
package stores

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store is a retail customer. Debt is a single rolling balance that never
// drops below zero.
type Store struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Owner     string          `json:"owner"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address"`
	Region    string          `json:"region"`
	Debt      decimal.Decimal `json:"debt"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CustomPrice overrides a product's selling price for one store.
type CustomPrice struct {
	StoreID   int64           `json:"store_id"`
	ProductID int64           `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StoreFilter narrows store listings.
type StoreFilter struct {
	Region   string
	WithDebt bool
	Search   string
	Limit    int
	Offset   int
}

// CreateStoreInput describes a new store.
type CreateStoreInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Owner   string `json:"owner" validate:"max=120"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=500"`
	Region  string `json:"region" validate:"max=60"`
}

// DebtChange reports a debt adjustment.
type DebtChange struct {
	StoreID int64
	Before  decimal.Decimal
	After   decimal.Decimal
}
