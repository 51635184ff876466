package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	run := Run{ID: "r1", Symbol: "AAPL", InitialCash: 100_000, CreatedAt: time.Now()}
	if err := m.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := m.InsertTrade(ctx, "r1", TradeRow{Instrument: "AAPL", Side: "buy", Quantity: 10, Price: 100, Notional: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := m.InsertEquityPoint(ctx, "r1", EquityRow{Cash: 99_000, PositionValue: 1000, Equity: 100_000}); err != nil {
		t.Fatal(err)
	}

	trades, err := m.ListTrades(ctx, "r1")
	if err != nil || len(trades) != 1 {
		t.Fatalf("trades = %v, err = %v", trades, err)
	}
	equity, err := m.ListEquity(ctx, "r1")
	if err != nil || len(equity) != 1 || equity[0].Equity != 100_000 {
		t.Fatalf("equity = %v, err = %v", equity, err)
	}
}

func TestMemoryStoreUnknownRun(t *testing.T) {
	m := NewMemory()
	if err := m.InsertTrade(context.Background(), "nope", TradeRow{}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("want ErrRunNotFound, got %v", err)
	}
	if _, err := m.ListTrades(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("want ErrRunNotFound, got %v", err)
	}
}
