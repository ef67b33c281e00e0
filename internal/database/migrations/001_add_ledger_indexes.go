package migrations

import (
	"gorm.io/gorm"
)

// AddLedgerIndexes creates indexes the order and holdings queries rely
// on beyond what the model tags declare
func AddLedgerIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Order history is read newest-first per user
		`CREATE INDEX IF NOT EXISTS idx_orders_user_date
		 ON orders(user_id, date_of_order)`,

		// Per-type aggregates for trade stats and admin charts
		`CREATE INDEX IF NOT EXISTS idx_orders_type_symbol
		 ON orders(type, symbol)`,

		// Admin activity windows filter on order time
		`CREATE INDEX IF NOT EXISTS idx_orders_date_of_order
		 ON orders(date_of_order)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
