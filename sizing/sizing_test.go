package sizing

import "testing"

func TestOptionContracts(t *testing.T) {
	cases := []struct {
		name       string
		cash, pct  float64
		price      float64
		multiplier int
		want       int
	}{
		{"whole contracts", 100_000, 0.25, 5, 100, 50},
		{"floors fraction", 100_000, 0.25, 7, 100, 35},
		{"minimum one when affordable", 10_000, 0.01, 3, 100, 1},
		{"zero when premium exceeds cash", 200, 1.0, 5, 100, 0},
		{"zero price", 100_000, 0.25, 0, 100, 0},
		{"negative price", 100_000, 0.25, -1, 100, 0},
		{"zero pct", 100_000, 0, 5, 100, 0},
	}
	for _, c := range cases {
		if got := OptionContracts(c.cash, c.pct, c.price, c.multiplier); got != c.want {
			t.Errorf("%s: OptionContracts() = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestStockSizing(t *testing.T) {
	if got := StockNotional(100_000, 0.25); got != 25_000 {
		t.Fatalf("StockNotional = %v", got)
	}
	if got := StockNotional(-1, 0.25); got != 0 {
		t.Fatalf("negative cash must size to zero, got %v", got)
	}
	if got := StockQuantity(25_000, 150, true); got != 25_000.0/150 {
		t.Fatalf("fractional quantity = %v", got)
	}
	if got := StockQuantity(25_000, 150, false); got != 166 {
		t.Fatalf("whole-share quantity = %v, want 166", got)
	}
}

func TestCanEnter(t *testing.T) {
	l := Limits{}.WithDefaults()
	if r := l.CanEnter(50, 10, 0); r != RejectCashFloor {
		t.Fatalf("want cash floor, got %q", r)
	}
	if r := l.CanEnter(1_000, 1.50, 0); r != RejectPriceFloor {
		t.Fatalf("want price floor, got %q", r)
	}
	if r := l.CanEnter(1_000, 10, 10); r != RejectPositionCap {
		t.Fatalf("want position cap, got %q", r)
	}
	if r := l.CanEnter(1_000, 10, 3); r != RejectNone {
		t.Fatalf("want allowed, got %q", r)
	}
}
