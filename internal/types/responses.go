package types

import "time"

// OrderSummary is the order echo returned from a successful placement.
type OrderSummary struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  int64     `json:"quantity"`
	OrderType string    `json:"order_type"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderResult is the response from the order execution service:
// the new order plus the caller's full post-trade holdings.
type OrderResult struct {
	Order           OrderSummary `json:"order"`
	UpdatedHoldings []Holding    `json:"updated_holdings"`
}

// AnnotatedOrder is an order history row decorated with the
// current market price at read time.
type AnnotatedOrder struct {
	Order
	CurrentPrice  float64 `json:"current_price"`
	ChangePercent float64 `json:"change"`
}

// AnnotatedHolding is a holding decorated with live market data.
type AnnotatedHolding struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Quantity      int64   `json:"quantity"`
	Value         float64 `json:"value"`
	CurrentPrice  float64 `json:"current_price"`
	ChangePercent float64 `json:"change"`
}
