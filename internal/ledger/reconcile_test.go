package ledger

import (
	"testing"

	"github.com/fortunehq/portfolio-api/internal/types"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		existing     *types.Holding
		order        types.Order
		wantQuantity int64
		wantValue    float64
	}{
		{
			name:         "buy into empty position",
			existing:     nil,
			order:        types.Order{Symbol: "XYZ", Type: "buy", Quantity: 10, Price: 100},
			wantQuantity: 10,
			wantValue:    1000,
		},
		{
			name:         "buy adds to existing position",
			existing:     &types.Holding{Symbol: "XYZ", Quantity: 10, Value: 1000},
			order:        types.Order{Symbol: "XYZ", Type: "buy", Quantity: 5, Price: 110},
			wantQuantity: 15,
			wantValue:    1650,
		},
		{
			name:         "sell marks remaining position to market",
			existing:     &types.Holding{Symbol: "XYZ", Quantity: 10, Value: 1000},
			order:        types.Order{Symbol: "XYZ", Type: "sell", Quantity: 4, Price: 120},
			wantQuantity: 6,
			wantValue:    720,
		},
		{
			name:         "sell to exactly zero",
			existing:     &types.Holding{Symbol: "XYZ", Quantity: 4, Value: 480},
			order:        types.Order{Symbol: "XYZ", Type: "sell", Quantity: 4, Price: 125},
			wantQuantity: 0,
			wantValue:    0,
		},
		{
			name:         "sell past zero creates short position",
			existing:     &types.Holding{Symbol: "XYZ", Quantity: 3, Value: 300},
			order:        types.Order{Symbol: "XYZ", Type: "sell", Quantity: 8, Price: 100},
			wantQuantity: -5,
			wantValue:    -500,
		},
		{
			name:         "buy covers a short position",
			existing:     &types.Holding{Symbol: "XYZ", Quantity: -5, Value: -500},
			order:        types.Order{Symbol: "XYZ", Type: "buy", Quantity: 7, Price: 90},
			wantQuantity: 2,
			wantValue:    180,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.existing, &tt.order, "Test Corp")
			if got.Quantity != tt.wantQuantity {
				t.Errorf("quantity = %d, want %d", got.Quantity, tt.wantQuantity)
			}
			if got.Value != tt.wantValue {
				t.Errorf("value = %v, want %v", got.Value, tt.wantValue)
			}
		})
	}
}

func TestReconcileIsDeterministic(t *testing.T) {
	existing := &types.Holding{UserID: "u1", Symbol: "AAPL", Quantity: 7, Value: 700}
	order := &types.Order{UserID: "u1", Symbol: "AAPL", Type: "buy", Quantity: 3, Price: 105}

	first := Reconcile(existing, order, "Apple Inc.")
	second := Reconcile(existing, order, "Apple Inc.")

	if first.Quantity != second.Quantity || first.Value != second.Value {
		t.Errorf("reconcile not deterministic: %+v vs %+v", first, second)
	}
	if existing.Quantity != 7 {
		t.Errorf("reconcile mutated its input: quantity = %d", existing.Quantity)
	}
}

func TestReconcileRetainsName(t *testing.T) {
	existing := &types.Holding{UserID: "u1", Symbol: "AAPL", Name: "Apple Inc.", Quantity: 1, Value: 100}
	order := &types.Order{UserID: "u1", Symbol: "AAPL", Type: "buy", Quantity: 1, Price: 100}

	got := Reconcile(existing, order, "different name")
	if got.Name != "Apple Inc." {
		t.Errorf("name = %q, want existing name retained", got.Name)
	}

	fresh := Reconcile(nil, order, "Apple Inc.")
	if fresh.Name != "Apple Inc." {
		t.Errorf("name = %q, want supplied name on first insert", fresh.Name)
	}
}
