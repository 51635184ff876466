package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"algotrade/ledger"
)

func eqPoints(values ...float64) []EquityPoint {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]EquityPoint, len(values))
	for i, v := range values {
		pts[i] = EquityPoint{Date: start.AddDate(0, 0, i), Equity: v}
	}
	return pts
}

func TestMaxDrawdown(t *testing.T) {
	cases := []struct {
		name   string
		equity []EquityPoint
		want   float64
	}{
		{"peak then trough", eqPoints(100, 120, 90, 110), 0.25},
		{"monotonic rise", eqPoints(100, 110, 120), 0},
		{"deepest wins", eqPoints(100, 80, 120, 60), 0.5},
		{"empty", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := maxDrawdown(tc.equity); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("maxDrawdown = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSharpe(t *testing.T) {
	if got := sharpe([]float64{0, 0, 0}); got != 0 {
		t.Errorf("flat series sharpe = %v, want 0", got)
	}
	if got := sharpe([]float64{0.01}); got != 0 {
		t.Errorf("single return sharpe = %v, want 0", got)
	}
	if got := sharpe([]float64{0.01, 0.02, 0.015, 0.012}); got <= 0 {
		t.Errorf("all-positive returns sharpe = %v, want > 0", got)
	}
	if got := sharpe([]float64{-0.01, -0.02, -0.015}); got >= 0 {
		t.Errorf("all-negative returns sharpe = %v, want < 0", got)
	}
}

func TestWinLossByAssetFlows(t *testing.T) {
	d := decimal.NewFromInt
	trades := []ledger.Trade{
		{Instrument: "AAPL", Side: ledger.Buy, Notional: d(100)},
		{Instrument: "AAPL", Side: ledger.Sell, Notional: d(150)},
		{Instrument: "MSFT", Side: ledger.Buy, Notional: d(100)},
		{Instrument: "MSFT", Side: ledger.Sell, Notional: d(80)},
		{Instrument: "NVDA", Side: ledger.Buy, Notional: d(100)},
		{Instrument: "NVDA", Side: ledger.Sell, Notional: d(100)},
	}
	wins, losses := winLoss(trades)
	if wins != 1 || losses != 1 {
		t.Errorf("wins/losses = %d/%d, want 1/1 (break-even counts as neither)", wins, losses)
	}
}

func TestSummarizeAnnualizesOverTradingDays(t *testing.T) {
	// 252 marks from 100 to 110: one trading year, so CAGR equals the
	// total return.
	values := make([]float64, 252)
	for i := range values {
		values[i] = 100 + 10*float64(i)/251
	}
	cfg := DefaultRunConfig()
	cfg.Start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cfg.End = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	sum := summarize(cfg, nil, eqPoints(values...))
	if math.Abs(sum.TotalReturnPct-10) > 0.01 {
		t.Errorf("total return = %v, want 10", sum.TotalReturnPct)
	}
	if math.Abs(sum.CAGRPct-10) > 0.01 {
		t.Errorf("cagr = %v, want 10", sum.CAGRPct)
	}
	if sum.Start != "2024-01-02" || sum.End != "2024-12-31" {
		t.Errorf("range = %s..%s", sum.Start, sum.End)
	}
	if sum.MaxDrawdownPct != 0 {
		t.Errorf("drawdown = %v, want 0 on a monotonic series", sum.MaxDrawdownPct)
	}
}

func TestSummarizeEmptyEquity(t *testing.T) {
	cfg := DefaultRunConfig()
	sum := summarize(cfg, nil, nil)
	if sum.FinalEquity != 0 || sum.NumTrades != 0 {
		t.Errorf("empty run summary = %+v", sum)
	}
}
