package admin

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UserSummary is a user row stripped to what the admin views need.
type UserSummary struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionSummary is one order with its computed transaction value.
type TransactionSummary struct {
	OrderID          string    `json:"order_id"`
	Username         string    `json:"username"`
	Symbol           string    `json:"symbol"`
	Quantity         int64     `json:"quantity"`
	Price            float64   `json:"price"`
	Type             string    `json:"type"`
	TransactionValue float64   `json:"transaction_value"`
	DateOfOrder      time.Time `json:"date_of_order"`
}

// PortfolioSummary is one user's total holdings value.
type PortfolioSummary struct {
	UserID         string  `json:"user_id"`
	Username       string  `json:"username"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// SymbolCount is a per-symbol trade counter.
type SymbolCount struct {
	Symbol     string `json:"symbol"`
	TradeCount int64  `json:"trade_count"`
}

// UserCount is a per-user counter (trades, watchlist entries).
type UserCount struct {
	Username string `json:"username"`
	Count    int64  `json:"count"`
}

func (d *Database) LastUser() (*UserSummary, error) {
	var user types.User
	if err := d.db.Order("id DESC").First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &UserSummary{
		UserID:    user.UserID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

// LargestRecentTransaction returns the latest order above the threshold.
func (d *Database) LargestRecentTransaction(threshold float64) (*TransactionSummary, error) {
	var rows []TransactionSummary
	err := d.db.Model(&types.Order{}).
		Select("orders.order_id, users.username, orders.symbol, orders.quantity, orders.price, orders.type, orders.price * orders.quantity AS transaction_value, orders.date_of_order").
		Joins("JOIN users ON users.user_id = orders.user_id AND users.deleted_at IS NULL").
		Where("orders.price * orders.quantity > ?", threshold).
		Order("orders.date_of_order DESC").
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

// LargeTransactions returns the latest orders above the threshold.
func (d *Database) LargeTransactions(threshold float64, limit int) ([]TransactionSummary, error) {
	var rows []TransactionSummary
	err := d.db.Model(&types.Order{}).
		Select("orders.order_id, users.username, orders.symbol, orders.quantity, orders.price, orders.type, orders.price * orders.quantity AS transaction_value, orders.date_of_order").
		Joins("JOIN users ON users.user_id = orders.user_id AND users.deleted_at IS NULL").
		Where("orders.price * orders.quantity > ?", threshold).
		Order("orders.date_of_order DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// LargestPortfolios ranks users by total holdings value.
func (d *Database) LargestPortfolios(limit int) ([]PortfolioSummary, error) {
	var rows []PortfolioSummary
	err := d.db.Model(&types.Holding{}).
		Select("holdings.user_id, users.username, SUM(holdings.value) AS portfolio_value").
		Joins("JOIN users ON users.user_id = holdings.user_id AND users.deleted_at IS NULL").
		Group("holdings.user_id, users.username").
		Order("portfolio_value DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (d *Database) CountUsers() (int64, error) {
	var count int64
	err := d.db.Model(&types.User{}).Count(&count).Error
	return count, err
}

func (d *Database) CountUsersSince(since time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&types.User{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

// CountActiveUsers counts distinct users who placed orders since the cutoff.
func (d *Database) CountActiveUsers(since time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&types.Order{}).
		Where("date_of_order >= ?", since).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

func (d *Database) CountUsersWithHoldings() (int64, error) {
	var count int64
	err := d.db.Model(&types.Holding{}).Distinct("user_id").Count(&count).Error
	return count, err
}

// TotalTransactionValue sums price * quantity over orders since the
// cutoff. A zero cutoff covers all history.
func (d *Database) TotalTransactionValue(since time.Time) (float64, error) {
	var total *float64
	query := d.db.Model(&types.Order{}).
		Select("SUM(price * quantity)")
	if !since.IsZero() {
		query = query.Where("date_of_order >= ?", since)
	}
	if err := query.Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// TopTraders ranks users by order count since the cutoff.
func (d *Database) TopTraders(since time.Time, limit int) ([]UserCount, error) {
	var rows []UserCount
	err := d.db.Model(&types.Order{}).
		Select("users.username, COUNT(orders.id) AS count").
		Joins("JOIN users ON users.user_id = orders.user_id AND users.deleted_at IS NULL").
		Where("orders.date_of_order >= ?", since).
		Group("users.user_id, users.username").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// MostTradedSymbols ranks symbols by order count since the cutoff.
// Pass orderType to restrict to buys or sells, or "" for all orders.
func (d *Database) MostTradedSymbols(since time.Time, orderType string, limit int) ([]SymbolCount, error) {
	query := d.db.Model(&types.Order{}).
		Select("symbol, COUNT(*) AS trade_count").
		Group("symbol").
		Order("trade_count DESC").
		Limit(limit)
	if !since.IsZero() {
		query = query.Where("date_of_order >= ?", since)
	}
	if orderType != "" {
		query = query.Where("type = ?", orderType)
	}

	var rows []SymbolCount
	err := query.Scan(&rows).Error
	return rows, err
}

// TopWatchlisters ranks users by watchlist size.
func (d *Database) TopWatchlisters(limit int) ([]UserCount, error) {
	var rows []UserCount
	err := d.db.Model(&types.WatchlistEntry{}).
		Select("users.username, COUNT(watchlist_entries.id) AS count").
		Joins("JOIN users ON users.user_id = watchlist_entries.user_id AND users.deleted_at IS NULL").
		Group("users.user_id, users.username").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (d *Database) RecentUsers(limit int) ([]UserSummary, error) {
	var users []types.User
	if err := d.db.Order("created_at DESC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}

	out := make([]UserSummary, 0, len(users))
	for _, user := range users {
		out = append(out, UserSummary{
			UserID:    user.UserID,
			Username:  user.Username,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		})
	}
	return out, nil
}

// RecentTransactions returns the latest orders with usernames.
func (d *Database) RecentTransactions(limit int) ([]TransactionSummary, error) {
	var rows []TransactionSummary
	err := d.db.Model(&types.Order{}).
		Select("orders.order_id, users.username, orders.symbol, orders.quantity, orders.price, orders.type, orders.price * orders.quantity AS transaction_value, orders.date_of_order").
		Joins("JOIN users ON users.user_id = orders.user_id AND users.deleted_at IS NULL").
		Order("orders.date_of_order DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
