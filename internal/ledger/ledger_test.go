package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fortunehq/portfolio-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	// Single connection keeps sqlite happy under concurrent writers.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&types.Order{}, &types.Holding{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newOrder(userID, symbol, orderType string, quantity int64, price float64) *types.Order {
	return &types.Order{
		OrderID:     uuid.New().String(),
		UserID:      userID,
		Symbol:      symbol,
		Quantity:    quantity,
		Type:        orderType,
		Price:       price,
		DateOfOrder: time.Now(),
	}
}

func TestExecuteOrderBuyThenSell(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	holding, err := store.ExecuteOrder(newOrder("u1", "XYZ", "buy", 10, 100), "XYZ Corp", true)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if holding.Quantity != 10 || holding.Value != 1000 {
		t.Fatalf("after buy: got {%d %v}, want {10 1000}", holding.Quantity, holding.Value)
	}

	holding, err = store.ExecuteOrder(newOrder("u1", "XYZ", "sell", 4, 120), "XYZ Corp", true)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if holding.Quantity != 6 || holding.Value != 720 {
		t.Fatalf("after sell: got {%d %v}, want {6 720}", holding.Quantity, holding.Value)
	}

	orders, err := store.ListOrders("u1")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("order history has %d rows, want 2", len(orders))
	}
}

func TestExecuteOrderAllowsShortByDefault(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	holding, err := store.ExecuteOrder(newOrder("u1", "XYZ", "sell", 5, 50), "XYZ Corp", true)
	if err != nil {
		t.Fatalf("short sell: %v", err)
	}
	if holding.Quantity != -5 || holding.Value != -250 {
		t.Fatalf("short position: got {%d %v}, want {-5 -250}", holding.Quantity, holding.Value)
	}
}

func TestExecuteOrderRejectsOversellWhenShortsDisabled(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	if _, err := store.ExecuteOrder(newOrder("u1", "XYZ", "buy", 3, 100), "XYZ Corp", false); err != nil {
		t.Fatalf("buy: %v", err)
	}

	_, err := store.ExecuteOrder(newOrder("u1", "XYZ", "sell", 5, 100), "XYZ Corp", false)
	if err == nil {
		t.Fatal("oversell succeeded, want ErrInsufficientHoldings")
	}
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("got %v, want ErrInsufficientHoldings", err)
	}

	// The rejected sell left no order row behind.
	orders, err := store.ListOrders("u1")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("order history has %d rows, want 1", len(orders))
	}

	holding, err := store.GetHolding("u1", "XYZ")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if holding.Quantity != 3 {
		t.Fatalf("holding quantity = %d, want 3", holding.Quantity)
	}
}

func TestExecuteOrderAppendFailureLeavesStateUnchanged(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)

	if _, err := store.ExecuteOrder(newOrder("u1", "XYZ", "buy", 10, 100), "XYZ Corp", true); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// Losing the order table makes the append fail before any
	// reconcile happens.
	if err := db.Migrator().DropTable(&types.Order{}); err != nil {
		t.Fatalf("drop orders table: %v", err)
	}

	_, err := store.ExecuteOrder(newOrder("u1", "XYZ", "buy", 5, 100), "XYZ Corp", true)
	if err == nil {
		t.Fatal("execute succeeded without an order table")
	}
	if errors.Is(err, ErrHoldingsStale) {
		t.Fatalf("append failure reported as stale holdings: %v", err)
	}

	holding, err := store.GetHolding("u1", "XYZ")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if holding.Quantity != 10 || holding.Value != 1000 {
		t.Fatalf("holding = {%d %v}, want untouched {10 1000}", holding.Quantity, holding.Value)
	}
}

func TestExecuteOrderSurfacesStaleWhenReconcileFails(t *testing.T) {
	db := newTestDB(t)
	store := NewDatabase(db)

	// Reject all holdings writes so the append lands but the
	// reconcile transaction cannot.
	err := db.Exec(`CREATE TRIGGER holdings_unavailable BEFORE INSERT ON holdings
		BEGIN SELECT RAISE(ABORT, 'holdings unavailable'); END`).Error
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	order := newOrder("u1", "XYZ", "buy", 10, 100)
	_, err = store.ExecuteOrder(order, "XYZ Corp", true)
	if !errors.Is(err, ErrHoldingsStale) {
		t.Fatalf("got %v, want ErrHoldingsStale", err)
	}

	// The order row is the fact of record and must survive.
	orders, err := store.ListOrders("u1")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderID != order.OrderID {
		t.Fatalf("order history = %+v, want the appended order", orders)
	}

	holding, err := store.GetHolding("u1", "XYZ")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if holding != nil {
		t.Fatalf("holding = %+v, want none after failed reconcile", holding)
	}

	// Once the store recovers, the repair pass rebuilds the
	// aggregate from the surviving order.
	if err := db.Exec(`DROP TRIGGER holdings_unavailable`).Error; err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	repaired, err := store.RepairHoldings("u1")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if len(repaired) != 1 || repaired[0].Quantity != 10 || repaired[0].Value != 1000 {
		t.Fatalf("repaired = %+v, want one position {10 1000}", repaired)
	}
}

func TestHoldingsInvariant(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	sequence := []struct {
		orderType string
		quantity  int64
		price     float64
	}{
		{"buy", 10, 100},
		{"sell", 4, 110},
		{"sell", 9, 105}, // crosses into a short position
		{"buy", 5, 95},
		{"buy", 1, 102},
	}

	var wantQuantity int64
	for _, step := range sequence {
		if _, err := store.ExecuteOrder(newOrder("u1", "ABC", step.orderType, step.quantity, step.price), "ABC Inc", true); err != nil {
			t.Fatalf("%s %d: %v", step.orderType, step.quantity, err)
		}
		if step.orderType == "buy" {
			wantQuantity += step.quantity
		} else {
			wantQuantity -= step.quantity
		}
	}

	holding, err := store.GetHolding("u1", "ABC")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if holding.Quantity != wantQuantity {
		t.Fatalf("stored quantity = %d, want signed order sum %d", holding.Quantity, wantQuantity)
	}

	// Derived positions must agree with the stored aggregate.
	derived, err := store.DeriveHoldings("u1")
	if err != nil {
		t.Fatalf("derive holdings: %v", err)
	}
	if len(derived) != 1 || derived[0].Quantity != wantQuantity {
		t.Fatalf("derived = %+v, want quantity %d", derived, wantQuantity)
	}
}

func TestConcurrentBuysLoseNoUpdates(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ExecuteOrder(newOrder("u1", "RACE", "buy", 1, 50), "Race Corp", true)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent buy: %v", err)
		}
	}

	holding, err := store.GetHolding("u1", "RACE")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if holding.Quantity != n {
		t.Fatalf("final quantity = %d, want %d (lost updates)", holding.Quantity, n)
	}
}

func TestRepairHoldingsFixesCorruptedAggregate(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	if _, err := store.ExecuteOrder(newOrder("u1", "XYZ", "buy", 10, 100), "XYZ Corp", true); err != nil {
		t.Fatalf("buy: %v", err)
	}

	// Corrupt the stored aggregate, simulating a stale holdings row.
	if err := store.UpsertHolding(&types.Holding{UserID: "u1", Symbol: "XYZ", Quantity: 99, Value: 9900}); err != nil {
		t.Fatalf("corrupt holding: %v", err)
	}

	repaired, err := store.RepairHoldings("u1")
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if len(repaired) != 1 || repaired[0].Quantity != 10 || repaired[0].Value != 1000 {
		t.Fatalf("repaired = %+v, want one position {10 1000}", repaired)
	}

	holding, err := store.GetHolding("u1", "XYZ")
	if err != nil {
		t.Fatalf("get holding: %v", err)
	}
	if holding.Quantity != 10 || holding.Value != 1000 {
		t.Fatalf("stored after repair = {%d %v}, want {10 1000}", holding.Quantity, holding.Value)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	store := NewDatabase(newTestDB(t))

	older := newOrder("u1", "XYZ", "buy", 1, 100)
	older.DateOfOrder = time.Now().Add(-time.Hour)
	if err := store.AppendOrder(older); err != nil {
		t.Fatalf("append older: %v", err)
	}

	newer := newOrder("u1", "XYZ", "buy", 2, 101)
	if err := store.AppendOrder(newer); err != nil {
		t.Fatalf("append newer: %v", err)
	}

	orders, err := store.ListOrders("u1")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].OrderID != newer.OrderID {
		t.Errorf("first order = %s, want newest", orders[0].OrderID)
	}
}
