package trading

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"algotrade/broker"
	"algotrade/config"
	"algotrade/ledger"
	"algotrade/signal"
)

type fixedQuoter struct {
	prices map[string]float64
	err    error
}

func (q *fixedQuoter) LatestPrice(_ context.Context, sym string) (float64, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.prices[sym], nil
}

func testEngine(t *testing.T, cfg config.Config, paper *broker.Paper, q Quoter) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e, err := NewEngine(&cfg, q, paper, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, &buf
}

func baseConfig() config.Config {
	cfg := config.DefaultConfig
	cfg.Symbols = []string{"AAPL"}
	return cfg
}

func TestEntryOnRisingBelowBand(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 50)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, _ := testEngine(t, baseConfig(), paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 50, signal.Signal{Rising: true, BelowBand: true})

	positions, _ := paper.GetOpenPositions(context.Background())
	// 25% of 10k at $50 floors to 50 whole shares.
	if positions["AAPL"] != 50 {
		t.Fatalf("broker position = %v, want 50", positions["AAPL"])
	}
	if got := e.position("AAPL"); got != 50 {
		t.Fatalf("ledger position = %v, want 50", got)
	}
	trades := e.Trades()
	if len(trades) != 1 || trades[0].Side != ledger.Buy {
		t.Fatalf("trades = %+v", trades)
	}
}

func TestNoReentryWhileHolding(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 50)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, _ := testEngine(t, baseConfig(), paper, q)
	e.cash = 10_000

	sig := signal.Signal{Rising: true, BelowBand: true}
	e.applyRules(context.Background(), "AAPL", 50, sig)
	e.applyRules(context.Background(), "AAPL", 50, sig)

	if len(e.Trades()) != 1 {
		t.Fatalf("want a single entry, got %d trades", len(e.Trades()))
	}
}

func TestFallingIntoStrengthExitsFully(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 50)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, _ := testEngine(t, baseConfig(), paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 50, signal.Signal{Rising: true, BelowBand: true})
	paper.SetMark("AAPL", 60)
	e.applyRules(context.Background(), "AAPL", 60, signal.Signal{Falling: true, AboveBand: true})

	positions, _ := paper.GetOpenPositions(context.Background())
	if len(positions) != 0 {
		t.Fatalf("broker still holds %v", positions)
	}
	if got := e.position("AAPL"); got != 0 {
		t.Fatalf("ledger position = %v, want 0", got)
	}
}

func TestReversalTrimsHalf(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 50)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, _ := testEngine(t, baseConfig(), paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 50, signal.Signal{Rising: true, BelowBand: true})
	e.applyRules(context.Background(), "AAPL", 50, signal.Signal{Reversal: true})

	if got := e.position("AAPL"); got != 25 {
		t.Fatalf("position after trim = %v, want 25", got)
	}
}

func TestStopLossClosesPosition(t *testing.T) {
	cfg := baseConfig()
	cfg.StopLossPct = 0.10
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 100)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 100}}
	e, _ := testEngine(t, cfg, paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 100, signal.Signal{Rising: true, BelowBand: true})
	if e.position("AAPL") == 0 {
		t.Fatal("setup entry did not fill")
	}

	// 8% down: inside the stop.
	paper.SetMark("AAPL", 92)
	e.applyRules(context.Background(), "AAPL", 92, signal.Signal{})
	if e.position("AAPL") == 0 {
		t.Fatal("stop fired above the threshold")
	}

	// 12% down: through the stop.
	paper.SetMark("AAPL", 88)
	e.applyRules(context.Background(), "AAPL", 88, signal.Signal{})
	if got := e.position("AAPL"); got != 0 {
		t.Fatalf("position after stop = %v, want 0", got)
	}
}

func TestTakeProfitClosesPosition(t *testing.T) {
	cfg := baseConfig()
	cfg.TakeProfitPct = 0.20
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 100)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 100}}
	e, _ := testEngine(t, cfg, paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 100, signal.Signal{Rising: true, BelowBand: true})
	paper.SetMark("AAPL", 121)
	e.applyRules(context.Background(), "AAPL", 121, signal.Signal{})
	if got := e.position("AAPL"); got != 0 {
		t.Fatalf("position after take-profit = %v, want 0", got)
	}
}

func TestEODLiquidationRunsOncePerDay(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 50)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, buf := testEngine(t, baseConfig(), paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 50, signal.Signal{Rising: true, BelowBand: true})

	cutoff := time.Date(2026, 8, 28, 15, 50, 0, 0, eastern)
	e.now = func() time.Time { return cutoff }

	e.liquidateEOD(context.Background(), cutoff)
	if got := e.position("AAPL"); got != 0 {
		t.Fatalf("position after EOD = %v, want 0", got)
	}

	buf.Reset()
	e.liquidateEOD(context.Background(), cutoff.Add(time.Minute))
	if strings.Contains(buf.String(), "EOD cutoff") {
		t.Error("EOD liquidation ran twice for the same day")
	}
}

func TestReconcileReportsDrift(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("GHOST", 10)
	if _, err := paper.SubmitMarketOrder(context.Background(),
		broker.Order{Instrument: "GHOST", Side: broker.Buy, Quantity: 5}); err != nil {
		t.Fatal(err)
	}

	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, buf := testEngine(t, baseConfig(), paper, q)

	e.reconcile(context.Background())
	if !strings.Contains(buf.String(), "position drift GHOST") {
		t.Errorf("drift not reported, log: %s", buf.String())
	}
}

func TestTickSurfacesPortFailure(t *testing.T) {
	paper := broker.NewPaper(10_000)
	q := &fixedQuoter{err: errors.New("feed down")}
	e, _ := testEngine(t, baseConfig(), paper, q)

	if err := e.tick(context.Background()); err == nil {
		t.Fatal("want error when the quote feed is down")
	}
}

func TestSnapshotViews(t *testing.T) {
	paper := broker.NewPaper(10_000)
	paper.SetMark("AAPL", 50)
	q := &fixedQuoter{prices: map[string]float64{"AAPL": 50}}
	e, _ := testEngine(t, baseConfig(), paper, q)
	e.cash = 10_000

	e.applyRules(context.Background(), "AAPL", 50, signal.Signal{Rising: true, BelowBand: true})
	e.cash = 7_500
	e.lastPx["AAPL"] = 52

	snap := e.Snapshot()
	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %+v", snap.Positions)
	}
	p := snap.Positions[0]
	if p.Quantity != 50 || p.AvgCost != 50 || p.LastPrice != 52 {
		t.Errorf("position view = %+v", p)
	}
	if want := 7_500 + 50*52.0; snap.Equity != want {
		t.Errorf("equity = %v, want %v", snap.Equity, want)
	}
}
