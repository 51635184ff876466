// Package trading runs the strategy against a live broker. The rule set is
// the same one the backtester exercises; only the execution path differs:
// decisions act on polled quotes and fills come back from the broker port.
package trading

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"algotrade/broker"
	"algotrade/config"
	"algotrade/ledger"
	"algotrade/metrics"
	"algotrade/signal"
	"algotrade/sizing"
)

// Quoter supplies the latest trade price for a symbol. Both market data
// providers implement it.
type Quoter interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// maxBackoff caps the reconnect delay after repeated port failures.
const maxBackoff = 60 * time.Second

// reconcileEvery is the tick interval between broker position audits.
const reconcileEvery = 12

// EquitySample is one poll-loop mark of the live book.
type EquitySample struct {
	Time   time.Time `json:"time"`
	Cash   float64   `json:"cash"`
	Equity float64   `json:"equity"`
}

// PositionView is a read-only snapshot row for the API.
type PositionView struct {
	Instrument    string  `json:"instrument"`
	Quantity      float64 `json:"quantity"`
	AvgCost       float64 `json:"avg_cost"`
	LastPrice     float64 `json:"last_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Snapshot is the engine state served by /api/status.
type Snapshot struct {
	Time      time.Time      `json:"time"`
	Running   bool           `json:"running"`
	Cash      float64        `json:"cash"`
	Equity    float64        `json:"equity"`
	Positions []PositionView `json:"positions"`
}

// Engine is the live poll loop. One engine per process; symbols share the
// broker account.
type Engine struct {
	cfg    *config.Config
	quotes Quoter
	broker broker.Port

	signals *signal.Engine
	limits  sizing.Limits
	logger  *log.Logger
	now     func() time.Time

	cutHour, cutMinute int

	mu      sync.RWMutex
	book    *ledger.Ledger
	lastPx  map[string]float64
	cash    float64
	running bool
	history []EquitySample
	eodDone string
}

// NewEngine validates the config and wires the strategy state.
func NewEngine(cfg *config.Config, quotes Quoter, b broker.Port, logger *log.Logger) (*Engine, error) {
	h, m, err := config.ParseCutoff(cfg.EODCutoff)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cfg:       cfg,
		quotes:    quotes,
		broker:    b,
		signals:   signal.New(signal.Params{}),
		limits: sizing.Limits{
			MinCashUSD:       cfg.MinCashUSD,
			MinPriceUSD:      cfg.MinPriceUSD,
			MaxOpenPositions: cfg.MaxOpenPositions,
		}.WithDefaults(),
		logger:    logger,
		now:       time.Now,
		cutHour:   h,
		cutMinute: m,
		book:      ledger.New(),
		lastPx:    make(map[string]float64),
	}, nil
}

// Run polls until ctx is cancelled. Port failures back off exponentially
// and never kill the loop.
func (e *Engine) Run(ctx context.Context) error {
	e.setRunning(true)
	defer e.setRunning(false)

	e.logger.Printf("[trading] engine up, %d symbol(s), tick %s, cutoff %s",
		len(e.cfg.Symbols), e.cfg.TickInterval, e.cfg.EODCutoff)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		now := e.now()
		if !IsMarketOpenAt(now) {
			metrics.Ticks.WithLabelValues("closed").Inc()
			continue
		}
		if PastCutoff(now, e.cutHour, e.cutMinute) {
			e.liquidateEOD(ctx, now)
			continue
		}

		if err := e.tick(ctx); err != nil {
			metrics.Ticks.WithLabelValues("error").Inc()
			metrics.Reconnects.Inc()
			e.logger.Printf("[trading] tick failed, retrying in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		metrics.Ticks.WithLabelValues("ok").Inc()

		e.mu.RLock()
		n := len(e.history)
		e.mu.RUnlock()
		if n%reconcileEvery == 0 {
			e.reconcile(ctx)
		}
	}
}

// tick runs one decision pass over every symbol.
func (e *Engine) tick(ctx context.Context) error {
	cash, err := e.broker.GetCash(ctx)
	if err != nil {
		return fmt.Errorf("get cash: %w", err)
	}
	e.mu.Lock()
	e.cash = cash
	e.mu.Unlock()
	metrics.Cash.Set(cash)

	for _, sym := range e.cfg.Symbols {
		px, err := e.quotes.LatestPrice(ctx, sym)
		if err != nil {
			return fmt.Errorf("quote %s: %w", sym, err)
		}
		e.mu.Lock()
		e.lastPx[sym] = px
		e.mu.Unlock()

		sig := e.signals.Observe(sym, px)
		e.applyRules(ctx, sym, px, sig)
	}

	e.markEquity()
	return nil
}

// applyRules mirrors the backtest decision table minus option legs, which
// stay a backtest-only feature until the broker port grows option routing.
func (e *Engine) applyRules(ctx context.Context, sym string, px float64, sig signal.Signal) {
	if e.checkStops(ctx, sym, px) {
		return
	}

	held := e.position(sym)

	if sig.Falling && sig.AboveBand && held > 0 {
		metrics.Signals.WithLabelValues("falling_exit").Inc()
		e.exit(ctx, sym, held, px, "falling into strength")
		return
	}

	if sig.Rising && sig.BelowBand && held == 0 {
		metrics.Signals.WithLabelValues("rising_entry").Inc()
		e.enter(ctx, sym, px)
		return
	}

	if sig.Reversal && held > 0 {
		metrics.Signals.WithLabelValues("reversal_trim").Inc()
		e.exit(ctx, sym, held/2, px, "direction flip")
	}
}

// checkStops applies stop-loss/take-profit from average cost. Returns true
// when the position was closed this tick.
func (e *Engine) checkStops(ctx context.Context, sym string, px float64) bool {
	held := e.position(sym)
	if held <= 0 {
		return false
	}
	basis, _ := e.book.CostBasis(sym).Float64()
	avg := basis / held
	if avg <= 0 {
		return false
	}

	if sl := e.cfg.StopLossPct; sl > 0 && px <= avg*(1-sl) {
		metrics.Signals.WithLabelValues("stop_loss").Inc()
		e.exit(ctx, sym, held, px, fmt.Sprintf("stop loss, avg %.2f", avg))
		return true
	}
	if tp := e.cfg.TakeProfitPct; tp > 0 && px >= avg*(1+tp) {
		metrics.Signals.WithLabelValues("take_profit").Inc()
		e.exit(ctx, sym, held, px, fmt.Sprintf("take profit, avg %.2f", avg))
		return true
	}
	return false
}

func (e *Engine) enter(ctx context.Context, sym string, px float64) {
	e.mu.RLock()
	cash := e.cash
	open := len(e.book.OpenInstruments())
	e.mu.RUnlock()

	if reject := e.limits.CanEnter(cash, px, open); reject != sizing.RejectNone {
		e.logger.Printf("[trading] skip %s entry: %s", sym, reject)
		return
	}
	notional := sizing.StockNotional(cash, e.cfg.BuyPct)
	qty := sizing.StockQuantity(notional, px, false)
	if qty <= 0 {
		return
	}

	id, err := e.broker.SubmitMarketOrder(ctx, broker.Order{
		Instrument: sym, Side: broker.Buy, Quantity: qty,
	})
	if err != nil {
		metrics.Orders.WithLabelValues("buy", "rejected").Inc()
		e.logger.Printf("[trading] buy %s rejected: %v", sym, err)
		return
	}
	metrics.Orders.WithLabelValues("buy", "filled").Inc()
	e.logger.Printf("[trading] buy %s x%.0f @ %.2f order=%s", sym, qty, px, id)
	e.record(ledger.Buy, sym, qty, px)
}

func (e *Engine) exit(ctx context.Context, sym string, qty, px float64, why string) {
	if qty <= 0 {
		return
	}
	id, err := e.broker.SubmitMarketOrder(ctx, broker.Order{
		Instrument: sym, Side: broker.Sell, Quantity: qty,
	})
	if err != nil {
		metrics.Orders.WithLabelValues("sell", "rejected").Inc()
		e.logger.Printf("[trading] sell %s rejected: %v", sym, err)
		return
	}
	metrics.Orders.WithLabelValues("sell", "filled").Inc()
	e.logger.Printf("[trading] sell %s x%.2f @ %.2f (%s) order=%s", sym, qty, px, why, id)
	e.record(ledger.Sell, sym, qty, px)
}

// record books a broker fill into the local ledger. An oversell here means
// the ledger and the broker disagree about what we hold; that is never
// swallowed.
func (e *Engine) record(side ledger.Side, sym string, qty, px float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.book.ApplyFill(ledger.Fill{
		Instrument: sym,
		Asset:      ledger.Stock,
		Side:       side,
		Quantity:   decimal.NewFromFloat(qty),
		Price:      decimal.NewFromFloat(px),
		Time:       e.now(),
	})
	if err != nil {
		metrics.ReconcileDrift.Inc()
		e.logger.Printf("[trading] LEDGER INCONSISTENT on %s %s x%.2f: %v", side, sym, qty, err)
	}
}

// liquidateEOD flattens everything once per trading day after the cutoff.
func (e *Engine) liquidateEOD(ctx context.Context, now time.Time) {
	day := now.In(eastern).Format("2006-01-02")
	e.mu.Lock()
	if e.eodDone == day {
		e.mu.Unlock()
		return
	}
	e.eodDone = day
	open := e.book.OpenInstruments()
	e.mu.Unlock()

	if len(open) == 0 {
		return
	}
	e.logger.Printf("[trading] EOD cutoff, closing %d position(s)", len(open))
	for _, sym := range open {
		if err := e.broker.ClosePosition(ctx, sym); err != nil {
			e.logger.Printf("[trading] EOD close %s failed: %v", sym, err)
			continue
		}
		held := e.position(sym)
		e.mu.RLock()
		px := e.lastPx[sym]
		e.mu.RUnlock()
		e.record(ledger.Sell, sym, held, px)
	}
	e.markEquity()
}

// reconcile audits the local ledger against the broker's position report.
// Drift is logged and counted, never auto-corrected: a human decides.
func (e *Engine) reconcile(ctx context.Context) {
	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		e.logger.Printf("[trading] reconcile skipped: %v", err)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]bool, len(positions))
	for sym, brokerQty := range positions {
		seen[sym] = true
		localQty, _ := e.book.NetQuantity(sym).Float64()
		if diff := brokerQty - localQty; diff > 1e-9 || diff < -1e-9 {
			metrics.ReconcileDrift.Inc()
			e.logger.Printf("[trading] position drift %s: broker=%.4f ledger=%.4f", sym, brokerQty, localQty)
		}
	}
	for _, sym := range e.book.OpenInstruments() {
		if !seen[sym] {
			metrics.ReconcileDrift.Inc()
			e.logger.Printf("[trading] position drift %s: broker=0 ledger has open lots", sym)
		}
	}
}

func (e *Engine) markEquity() {
	e.mu.Lock()
	defer e.mu.Unlock()

	equity := e.cash
	for _, sym := range e.book.OpenInstruments() {
		qty, _ := e.book.NetQuantity(sym).Float64()
		equity += qty * e.lastPx[sym]
	}
	e.history = append(e.history, EquitySample{Time: e.now(), Cash: e.cash, Equity: equity})
	metrics.Equity.Set(equity)
	metrics.OpenPositions.Set(float64(len(e.book.OpenInstruments())))
}

func (e *Engine) position(sym string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, _ := e.book.NetQuantity(sym).Float64()
	return q
}

func (e *Engine) setRunning(v bool) {
	e.mu.Lock()
	e.running = v
	e.mu.Unlock()
}

// Snapshot returns the current state for the API layer.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Time:    e.now(),
		Running: e.running,
		Cash:    e.cash,
	}
	equity := e.cash
	for _, sym := range e.book.OpenInstruments() {
		qty, _ := e.book.NetQuantity(sym).Float64()
		basis, _ := e.book.CostBasis(sym).Float64()
		px := e.lastPx[sym]
		avg := 0.0
		if qty > 0 {
			avg = basis / qty
		}
		snap.Positions = append(snap.Positions, PositionView{
			Instrument:    sym,
			Quantity:      qty,
			AvgCost:       avg,
			LastPrice:     px,
			UnrealizedPnL: qty * (px - avg),
		})
		equity += qty * px
	}
	snap.Equity = equity
	return snap
}

// Trades returns the audit trail so far.
func (e *Engine) Trades() []ledger.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Trades()
}

// EquityHistory returns the poll-loop equity marks.
func (e *Engine) EquityHistory() []EquitySample {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]EquitySample, len(e.history))
	copy(out, e.history)
	return out
}
