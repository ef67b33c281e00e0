package ledger

import "github.com/fortunehq/portfolio-api/internal/types"

// signedQuantity maps an order to its effect on the aggregate position.
func signedQuantity(order *types.Order) int64 {
	if order.Type == "sell" {
		return -order.Quantity
	}
	return order.Quantity
}

// Reconcile derives the next aggregate position from the prior holding
// and one new order. Pure function, no I/O.
//
// Value is mark-to-market: the whole position is revalued at the order's
// captured price, not tracked at cost basis. A negative resulting
// quantity is an implicit short position and is represented as-is.
func Reconcile(existing *types.Holding, order *types.Order, name string) types.Holding {
	next := types.Holding{
		UserID: order.UserID,
		Symbol: order.Symbol,
		Name:   name,
	}

	if existing != nil {
		next = *existing
		if next.Name == "" {
			next.Name = name
		}
	}

	next.Quantity += signedQuantity(order)
	next.Value = float64(next.Quantity) * order.Price

	return next
}
