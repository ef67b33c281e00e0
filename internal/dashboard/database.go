package dashboard

import (
	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) ListHoldings(userID string) ([]types.Holding, error) {
	var holdings []types.Holding
	if err := d.db.Where("user_id = ?", userID).Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// SymbolVolume is an aggregate of traded quantity per symbol.
type SymbolVolume struct {
	Symbol        string `json:"symbol"`
	TotalQuantity int64  `json:"total_quantity"`
}

// TopSymbolByVolume returns the symbol with the largest summed quantity
// for one order type, or nil when no such orders exist.
func (d *Database) TopSymbolByVolume(orderType string) (*SymbolVolume, error) {
	var rows []SymbolVolume
	err := d.db.Model(&types.Order{}).
		Select("symbol, SUM(quantity) AS total_quantity").
		Where("type = ?", orderType).
		Group("symbol").
		Order("total_quantity DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
