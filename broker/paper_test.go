package broker

import (
	"context"
	"testing"
)

func TestPaperBuySellRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPaper(10_000)
	p.SetMark("AAPL", 100)

	id, err := p.SubmitMarketOrder(ctx, Order{Instrument: "AAPL", Side: Buy, Notional: 2_500})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected an order id")
	}

	cash, _ := p.GetCash(ctx)
	if cash != 7_500 {
		t.Fatalf("cash = %v, want 7500", cash)
	}
	pos, _ := p.GetOpenPositions(ctx)
	if pos["AAPL"] != 25 {
		t.Fatalf("position = %v, want 25", pos["AAPL"])
	}

	p.SetMark("AAPL", 110)
	if err := p.ClosePosition(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}
	cash, _ = p.GetCash(ctx)
	if cash != 7_500+25*110 {
		t.Fatalf("cash after close = %v", cash)
	}
	pos, _ = p.GetOpenPositions(ctx)
	if len(pos) != 0 {
		t.Fatalf("positions should be empty: %v", pos)
	}
}

func TestPaperRejectsBadOrders(t *testing.T) {
	ctx := context.Background()
	p := NewPaper(100)
	p.SetMark("AAPL", 100)

	if _, err := p.SubmitMarketOrder(ctx, Order{Instrument: "AAPL", Side: Buy, Notional: 500}); err == nil {
		t.Fatal("over-cash buy must fail")
	}
	if _, err := p.SubmitMarketOrder(ctx, Order{Instrument: "AAPL", Side: Sell, Quantity: 1}); err == nil {
		t.Fatal("naked sell must fail")
	}
	if _, err := p.SubmitMarketOrder(ctx, Order{Instrument: "MSFT", Side: Buy, Notional: 50}); err == nil {
		t.Fatal("order without a mark must fail")
	}
}
