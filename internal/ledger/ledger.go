package ledger

import (
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/fortunehq/portfolio-api/internal/types"
)

var (
	// ErrInsufficientHoldings is returned when short selling is disabled
	// and a sell exceeds the current position. Nothing is persisted.
	ErrInsufficientHoldings = errors.New("insufficient holdings for sell order")

	// ErrHoldingsStale means the order row is durably appended but the
	// holdings aggregate could not be updated. The trade is safe; the
	// aggregate view lags until a repair pass runs.
	ErrHoldingsStale = errors.New("order recorded, holdings update failed")
)

// Database is the ledger store: append-only order history plus the
// mutable holdings aggregate, with per-position write serialization.
type Database struct {
	db    *gorm.DB
	locks *keyLock
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{
		db:    db,
		locks: newKeyLock(),
	}
}

func positionKey(userID, symbol string) string {
	return userID + ":" + symbol
}

// AppendOrder durably records one executed order. Order rows are facts:
// they are never updated or deleted afterwards.
func (d *Database) AppendOrder(order *types.Order) error {
	if err := d.db.Create(order).Error; err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	return nil
}

// GetHolding returns the holding for (userID, symbol), or nil if absent.
func (d *Database) GetHolding(userID, symbol string) (*types.Holding, error) {
	var holding types.Holding
	err := d.db.Where("user_id = ? AND symbol = ?", userID, symbol).First(&holding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

// UpsertHolding inserts the holding or replaces its quantity and value.
func (d *Database) UpsertHolding(holding *types.Holding) error {
	return d.upsertHolding(d.db, holding)
}

func (d *Database) upsertHolding(tx *gorm.DB, holding *types.Holding) error {
	var existing types.Holding
	err := tx.Where("user_id = ? AND symbol = ?", holding.UserID, holding.Symbol).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(holding).Error
		}
		return err
	}

	existing.Quantity = holding.Quantity
	existing.Value = holding.Value
	if existing.Name == "" {
		existing.Name = holding.Name
	}
	if err := tx.Save(&existing).Error; err != nil {
		return err
	}
	*holding = existing
	return nil
}

// ListHoldings returns all holdings for a user.
func (d *Database) ListHoldings(userID string) ([]types.Holding, error) {
	var holdings []types.Holding
	if err := d.db.Where("user_id = ?", userID).Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// ListOrders returns a user's order history, newest first. Callers
// must not rely on this ordering for correctness.
func (d *Database) ListOrders(userID string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.Where("user_id = ?", userID).Order("date_of_order DESC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ExecuteOrder runs the critical section of order placement: under the
// per-(user, symbol) lock it checks sell capacity, appends the order row
// and reconciles the holding in one transaction.
//
// The order append is the fact of record. If the append succeeds but the
// reconcile transaction fails, the error wraps ErrHoldingsStale and the
// order row stays.
func (d *Database) ExecuteOrder(order *types.Order, name string, allowShort bool) (*types.Holding, error) {
	key := positionKey(order.UserID, order.Symbol)
	d.locks.lock(key)
	defer d.locks.unlock(key)

	existing, err := d.GetHolding(order.UserID, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("read holding: %w", err)
	}

	if !allowShort && order.Type == "sell" {
		var held int64
		if existing != nil {
			held = existing.Quantity
		}
		if order.Quantity > held {
			return nil, fmt.Errorf("%w: have %d, selling %d", ErrInsufficientHoldings, held, order.Quantity)
		}
	}

	if err := d.AppendOrder(order); err != nil {
		return nil, err
	}

	next := Reconcile(existing, order, name)
	err = d.db.Transaction(func(tx *gorm.DB) error {
		return d.upsertHolding(tx, &next)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHoldingsStale, err)
	}

	return &next, nil
}

// DeriveHoldings recomputes the aggregate positions from the full order
// history, independent of the stored holdings rows. Used for audits and
// by RepairHoldings.
func (d *Database) DeriveHoldings(userID string) ([]types.Holding, error) {
	var orders []types.Order
	// Surrogate key order: monotonic, unaffected by client clocks.
	if err := d.db.Where("user_id = ?", userID).Order("id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}

	derived := make(map[string]*types.Holding, len(orders))
	for i := range orders {
		order := &orders[i]
		next := Reconcile(derived[order.Symbol], order, order.Symbol)
		derived[order.Symbol] = &next
	}

	symbols := make([]string, 0, len(derived))
	for symbol := range derived {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	holdings := make([]types.Holding, 0, len(derived))
	for _, symbol := range symbols {
		holdings = append(holdings, *derived[symbol])
	}
	return holdings, nil
}

// RepairHoldings overwrites the stored aggregates with positions derived
// from order history. This is the repair pass for holdings left stale by
// a failed reconcile.
func (d *Database) RepairHoldings(userID string) ([]types.Holding, error) {
	derived, err := d.DeriveHoldings(userID)
	if err != nil {
		return nil, err
	}

	for i := range derived {
		holding := derived[i]
		key := positionKey(userID, holding.Symbol)
		d.locks.lock(key)
		err := d.db.Transaction(func(tx *gorm.DB) error {
			return d.upsertHolding(tx, &holding)
		})
		d.locks.unlock(key)
		if err != nil {
			return nil, fmt.Errorf("repair %s: %w", holding.Symbol, err)
		}
		derived[i] = holding
	}

	return derived, nil
}
