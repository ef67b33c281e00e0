package stocks

import (
	"errors"

	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UpsertStock inserts the cache row or replaces its quote fields.
func (d *Database) UpsertStock(row *types.Stock) error {
	var existing types.Stock
	err := d.db.Where("symbol = ?", row.Symbol).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return d.db.Create(row).Error
		}
		return err
	}

	existing.Name = row.Name
	existing.Price = row.Price
	existing.ChangePercent = row.ChangePercent
	existing.FiftyTwoWeekHigh = row.FiftyTwoWeekHigh
	existing.FiftyTwoWeekLow = row.FiftyTwoWeekLow
	existing.PriceToBook = row.PriceToBook
	existing.TrailingPE = row.TrailingPE
	return d.db.Save(&existing).Error
}

func (d *Database) GetStock(symbol string) (*types.Stock, error) {
	var row types.Stock
	if err := d.db.Where("symbol = ?", symbol).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (d *Database) ListStocks() ([]types.Stock, error) {
	var rows []types.Stock
	if err := d.db.Order("symbol ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
