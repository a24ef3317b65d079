package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order kinds
const (
	KindLimit  = "limit"
	KindMarket = "market"
)

// Order statuses
const (
	StatusPending   = "pending"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
)

// Ledger entry types
const (
	EntryLock       = "lock"
	EntryUnlock     = "unlock"
	EntryCredit     = "credit"
	EntryDebit      = "debit"
	EntrySwapDebit  = "swap_debit"
	EntrySwapCredit = "swap_credit"
	EntryFillDebit  = "fill_debit"
	EntryFillCredit = "fill_credit"
)

// Order represents an order in the system. Only pending limit orders rest in
// the book; market orders execute immediately and are stored already filled.
type Order struct {
	ID          uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID        `json:"user_id" gorm:"type:uuid;index"`
	Market      string           `json:"market" gorm:"index"`
	BaseAsset   string           `json:"base_asset"`
	QuoteAsset  string           `json:"quote_asset"`
	Side        string           `json:"side"` // buy, sell
	Kind        string           `json:"kind"` // limit, market
	Size        decimal.Decimal  `json:"size" gorm:"type:decimal(20,8)"`
	Price       *decimal.Decimal `json:"price" gorm:"type:decimal(20,8)"` // nil for market orders
	FilledPrice *decimal.Decimal `json:"filled_price" gorm:"type:decimal(20,8)"`
	Status      string           `json:"status" gorm:"index"` // pending, filled, cancelled
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	FilledAt    *time.Time       `json:"filled_at"`
}

// Trade represents a settled order pair. Immutable once created.
type Trade struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	BuyOrderID  uuid.UUID       `json:"buy_order_id" gorm:"type:uuid;index"`
	SellOrderID uuid.UUID       `json:"sell_order_id" gorm:"type:uuid;index"`
	BuyerID     uuid.UUID       `json:"buyer_id" gorm:"type:uuid;index"`
	SellerID    uuid.UUID       `json:"seller_id" gorm:"type:uuid;index"`
	Market      string          `json:"market" gorm:"index"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(20,8)"`
	Size        decimal.Decimal `json:"size" gorm:"type:decimal(20,8)"`
	BuyerFee    decimal.Decimal `json:"buyer_fee" gorm:"type:decimal(20,8)"`
	SellerFee   decimal.Decimal `json:"seller_fee" gorm:"type:decimal(20,8)"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Account represents a user's balance for a specific asset.
// Invariant: Available >= 0 and Locked >= 0 at all times.
type Account struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_user_asset"`
	Asset     string          `json:"asset" gorm:"uniqueIndex:idx_user_asset"`
	Available decimal.Decimal `json:"available" gorm:"type:decimal(20,8)"`
	Locked    decimal.Decimal `json:"locked" gorm:"type:decimal(20,8)"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry records a single balance mutation for audit and replay.
// Every mutating ledger operation writes exactly one entry per account
// it touches, in the same transaction as the balance update.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        uuid.UUID       `json:"user_id" gorm:"type:uuid;index"`
	Asset         string          `json:"asset"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(20,8)"`
	BalanceBefore decimal.Decimal `json:"balance_before" gorm:"type:decimal(20,8)"`
	BalanceAfter  decimal.Decimal `json:"balance_after" gorm:"type:decimal(20,8)"`
	ReferenceID   *uuid.UUID      `json:"reference_id" gorm:"type:uuid;index"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FeeConfig holds the per-asset maker/taker rates. Assets without a row
// fall back to the process-wide defaults.
type FeeConfig struct {
	Asset     string          `json:"asset" gorm:"primaryKey"`
	MakerRate decimal.Decimal `json:"maker_rate" gorm:"type:decimal(20,8)"`
	TakerRate decimal.Decimal `json:"taker_rate" gorm:"type:decimal(20,8)"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Notification records an order-fill notification handed to the sink.
// Delivery transport is external; this row is the dispatch record.
type Notification struct {
	ID        uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID       `json:"user_id" gorm:"type:uuid;index"`
	OrderID   uuid.UUID       `json:"order_id" gorm:"type:uuid;index"`
	Side      string          `json:"side"`
	Size      decimal.Decimal `json:"size" gorm:"type:decimal(20,8)"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(20,8)"`
	Asset     string          `json:"asset"`
	CreatedAt time.Time       `json:"created_at"`
}

// Market describes a configured trading pair.
type Market struct {
	ID         string `json:"id"` // e.g. "BTC/USDT"
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
}
