package watchlist

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

func (d *Database) CreateEntry(entry *types.WatchlistEntry) error {
	return d.db.Create(entry).Error
}

func (d *Database) Exists(userID, symbol string) (bool, error) {
	var count int64
	err := d.db.Model(&types.WatchlistEntry{}).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *Database) ListSymbols(userID string) ([]string, error) {
	var symbols []string
	err := d.db.Model(&types.WatchlistEntry{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// DeleteEntry removes the bookmark and reports whether a row existed.
func (d *Database) DeleteEntry(userID, symbol string) (bool, error) {
	result := d.db.Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&types.WatchlistEntry{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
