package types

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model   `json:"-"`
	UserID       string `gorm:"uniqueIndex" json:"user_id"`
	Username     string `gorm:"uniqueIndex" json:"username"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	PasswordHash string `json:"-"`
	Admin        bool   `json:"admin"`
}

// Principal is the resolved identity behind a verified token.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Order is an append-only fact of one executed buy or sell.
// Rows are never updated or deleted after creation.
type Order struct {
	gorm.Model  `json:"-"`
	OrderID     string    `gorm:"uniqueIndex" json:"order_id"`
	UserID      string    `gorm:"index:idx_orders_user_symbol" json:"user_id"`
	Symbol      string    `gorm:"index:idx_orders_user_symbol" json:"symbol"`
	Quantity    int64     `json:"quantity"`
	Type        string    `json:"type"` // buy or sell
	Price       float64   `json:"price"`
	DateOfOrder time.Time `json:"date_of_order"`
}

// Holding is the mutable aggregate position per (user, symbol).
// Quantity must equal the signed sum of all orders for the pair.
type Holding struct {
	gorm.Model `json:"-"`
	UserID     string  `gorm:"uniqueIndex:idx_holdings_user_symbol" json:"user_id"`
	Symbol     string  `gorm:"uniqueIndex:idx_holdings_user_symbol" json:"symbol"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Value      float64 `json:"value"` // quantity * last traded price
}

// WatchlistEntry is a bookmark, not reconciled against orders.
type WatchlistEntry struct {
	gorm.Model  `json:"-"`
	UserID      string  `gorm:"uniqueIndex:idx_watchlist_user_symbol" json:"user_id"`
	Symbol      string  `gorm:"uniqueIndex:idx_watchlist_user_symbol" json:"symbol"`
	PriceAtAdd  float64 `json:"price_at_add"`
	ChangeAtAdd float64 `json:"change_at_add"`
}

// Stock is a cached quote row for the tracked symbol universe,
// kept fresh by the stocks refresher.
type Stock struct {
	gorm.Model       `json:"-"`
	Symbol           string  `gorm:"uniqueIndex" json:"symbol"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	ChangePercent    float64 `json:"change"`
	FiftyTwoWeekHigh float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64 `json:"fifty_two_week_low"`
	PriceToBook      float64 `json:"price_to_book"`
	TrailingPE       float64 `json:"pe_ratio"`
}

// Quote is a point-in-time price snapshot from the quote provider.
// It is never persisted directly.
type Quote struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	ChangePercent    float64 `json:"change"`
	FiftyTwoWeekHigh float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64 `json:"fifty_two_week_low"`
	PriceToBook      float64 `json:"price_to_book"`
	TrailingPE       float64 `json:"pe_ratio"`
}
