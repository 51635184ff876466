package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"algotrade/contract"
	"algotrade/ledger"
	"algotrade/marketdata"
	"algotrade/signal"
	"algotrade/sizing"
)

const optionMultiplier = 100

// Runner drives the signal/selector/ledger pipeline bar-by-bar over a
// historical window. Decisions are made on bar T's close; every resulting
// fill executes on bar T+1 — stock at T+1's open, options at T+1's quote.
// Nothing a decision consumes postdates the decision bar.
type Runner struct {
	md    marketdata.Port
	state State
}

func NewRunner(md marketdata.Port) *Runner {
	return &Runner{md: md, state: StateIdle}
}

// State reports the lifecycle of the most recent run.
func (r *Runner) State() State { return r.state }

// Run executes one backtest per configured symbol. Per-symbol failures are
// captured in that symbol's Result; the other symbols still run.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) ([]Result, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("backtest: no symbols configured")
	}

	sector, err := r.loadSector(ctx, cfg)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		out = append(out, r.runOne(ctx, sym, sector, cfg))
	}
	r.state = StateFinished
	return out, nil
}

// loadSector fetches the confirmation series once; all symbols share it.
func (r *Runner) loadSector(ctx context.Context, cfg RunConfig) ([]marketdata.Bar, error) {
	if cfg.SectorSymbol == "" {
		return nil, nil
	}
	bars, err := r.md.GetDailyBars(ctx, cfg.SectorSymbol,
		cfg.Start.AddDate(0, 0, -cfg.WarmupDays), cfg.End.AddDate(0, 0, 2))
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			// Confirmation is optional; run without it.
			return nil, nil
		}
		return nil, fmt.Errorf("sector bars %s: %w", cfg.SectorSymbol, err)
	}
	return bars, nil
}

func (r *Runner) runOne(ctx context.Context, symbol string, sector []marketdata.Bar, cfg RunConfig) Result {
	r.state = StateIdle

	bars, err := r.md.GetDailyBars(ctx, symbol,
		cfg.Start.AddDate(0, 0, -cfg.WarmupDays), cfg.End.AddDate(0, 0, 2))
	if err != nil {
		return Result{Symbol: symbol, Error: err.Error()}
	}
	r.state = StateLoaded

	s := &session{
		runner:  r,
		cfg:     cfg,
		symbol:  symbol,
		bars:    bars,
		sector:  sector,
		cash:    cfg.InitialCash,
		signals: signal.New(cfg.Signal),
		sel:     contract.NewSelector(marketdata.WithQuoteCache(r.md, marketdata.NewMemoryCache()), cfg.Selector),
		book:    ledger.New(),
		lastPx:  make(map[string]float64),
	}

	r.state = StateRunning
	res := s.run(ctx)
	r.state = StateFinished
	return res
}

// session is the per-symbol run state.
type session struct {
	runner *Runner
	cfg    RunConfig
	symbol string
	bars   []marketdata.Bar
	sector []marketdata.Bar

	cash    float64
	signals *signal.Engine
	sel     *contract.Selector
	book    *ledger.Ledger
	lastPx  map[string]float64 // OCC -> latest seen option close

	equity []EquityPoint
	skips  []Skip
}

func (s *session) run(ctx context.Context) Result {
	var lastInRange int = -1
	for i, bar := range s.bars {
		inRange := !bar.Date.Before(s.cfg.Start) && (s.cfg.End.IsZero() || !bar.Date.After(s.cfg.End))

		// Warmup bars prime the window but never trade.
		sig := s.signals.Observe(s.symbol, bar.Close)
		if !inRange {
			continue
		}
		lastInRange = i

		if i+1 < len(s.bars) {
			s.decide(ctx, i, sig)
		}
		s.mark(ctx, bar)
	}

	res := Result{
		Symbol: s.symbol,
		Trades: s.book.Trades(),
		Equity: s.equity,
		Skips:  s.skips,
	}
	if lastInRange < 0 {
		res.Error = fmt.Sprintf("no bars for %s in requested range", s.symbol)
		return res
	}
	res.Summary = summarize(s.cfg, res.Trades, res.Equity)
	return res
}

// decide applies the rule set to bar i's signal. Rule ordering matters:
// later rules may close what earlier rules opened within the same bar.
func (s *session) decide(ctx context.Context, i int, sig signal.Signal) {
	bar := s.bars[i]
	next := s.bars[i+1]

	sector := s.sectorTrend(bar.Date)

	// Falling into strength: dump calls, lean short via puts, drop stock.
	if sig.Falling && (sig.AboveBand || sector == -1) {
		s.closeOptionLegs(ctx, next, contract.Call)
		s.openOptionLeg(ctx, bar, next, contract.Put, s.cfg.OptionPct)
		s.exitStock(next, 1.0, "falling_exit")
	}

	// Rising out of weakness: dump puts, lean long via calls and stock.
	if sig.Rising && (sig.BelowBand || sector == +1) {
		s.closeOptionLegs(ctx, next, contract.Put)
		s.openOptionLeg(ctx, bar, next, contract.Call, s.cfg.OptionPct)
		s.enterStock(bar, next)
	}

	// Fading momentum: half-sized continuation leg in the current direction.
	if sig.Decelerating {
		switch {
		case sig.LastMove > 0:
			s.openOptionLeg(ctx, bar, next, contract.Call, s.cfg.OptionPct/2)
		case sig.LastMove < 0:
			s.openOptionLeg(ctx, bar, next, contract.Put, s.cfg.OptionPct/2)
		}
	}

	// Direction flip: flatten option legs, cut the stock per policy.
	if sig.Reversal {
		s.closeOptionLegs(ctx, next, "")
		frac := 0.5
		if s.cfg.ExitPolicy == ExitFull {
			frac = 1.0
		}
		s.exitStock(next, frac, "reversal_exit")
	}
}

// enterStock buys a cash-fraction notional at the next bar's open.
func (s *session) enterStock(bar, next marketdata.Bar) {
	if reject := s.cfg.Limits.CanEnter(s.cash, bar.Close, s.openPositionCount()); reject != sizing.RejectNone {
		s.skip(bar.Date, "stock_entry", string(reject))
		return
	}
	notional := sizing.StockNotional(s.cash, s.cfg.StockPct)
	qty := sizing.StockQuantity(notional, next.Open, true)
	if qty <= 0 {
		s.skip(bar.Date, "stock_entry", "zero_quantity")
		return
	}
	if err := s.fill(ledger.Buy, s.symbol, ledger.Stock, qty, next.Open, next.Date); err != nil {
		s.skip(bar.Date, "stock_entry", err.Error())
	}
}

// exitStock sells frac of the open stock position at the next bar's open.
func (s *session) exitStock(next marketdata.Bar, frac float64, stage string) {
	held, _ := s.book.NetQuantity(s.symbol).Float64()
	if held <= 0 {
		return
	}
	qty := held * frac
	if qty <= 0 || next.Open <= 0 {
		return
	}
	if err := s.fill(ledger.Sell, s.symbol, ledger.Stock, qty, next.Open, next.Date); err != nil {
		s.skip(next.Date, stage, err.Error())
	}
}

// openOptionLeg selects a contract against the decision-day quote and buys
// it at the next day's quote.
func (s *session) openOptionLeg(ctx context.Context, bar, next marketdata.Bar, right contract.Right, pct float64) {
	if reject := s.cfg.Limits.CanEnter(s.cash, bar.Close, s.openPositionCount()); reject != sizing.RejectNone {
		s.skip(bar.Date, "option_entry", string(reject))
		return
	}
	ref, err := s.sel.Select(ctx, s.symbol, bar.Close, right, s.cfg.StrikeTargetPct, bar.Date)
	if err != nil {
		if errors.Is(err, contract.ErrNoContract) {
			s.skip(bar.Date, "option_entry", "no_liquid_contract")
		} else {
			s.skip(bar.Date, "option_entry", err.Error())
		}
		return
	}
	occ := ref.OCC()

	px, ok := s.optionPrice(ctx, occ, next.Date)
	if !ok || px <= 0 {
		s.skip(next.Date, "option_entry", "no_fill_quote")
		return
	}
	n := sizing.OptionContracts(s.cash, pct, px, optionMultiplier)
	if n == 0 {
		s.skip(bar.Date, "option_entry", "insufficient_cash")
		return
	}
	if err := s.fill(ledger.Buy, occ, ledger.Option, float64(n), px, next.Date); err != nil {
		s.skip(next.Date, "option_entry", err.Error())
	}
}

// closeOptionLegs sells every open leg of the given right (both rights when
// right is empty) at the next day's quote. Legs without a quote stay open
// and are retried on a later bar.
func (s *session) closeOptionLegs(ctx context.Context, next marketdata.Bar, right contract.Right) {
	for _, inst := range s.book.OpenInstruments() {
		if inst == s.symbol {
			continue
		}
		ref, err := contract.Parse(inst)
		if err != nil {
			continue
		}
		if right != "" && ref.Right != right {
			continue
		}
		px, ok := s.optionPrice(ctx, inst, next.Date)
		if !ok || px <= 0 {
			s.skip(next.Date, "option_exit", "no_fill_quote")
			continue
		}
		qty, _ := s.book.NetQuantity(inst).Float64()
		if qty <= 0 {
			continue
		}
		if err := s.fill(ledger.Sell, inst, ledger.Option, qty, px, next.Date); err != nil {
			s.skip(next.Date, "option_exit", err.Error())
		}
	}
}

// fill books one executed order into the ledger and moves cash. Option
// prices are per-contract premiums; cash moves by premium x multiplier.
func (s *session) fill(side ledger.Side, inst string, kind ledger.AssetKind, qty, price float64, t time.Time) error {
	_, err := s.book.ApplyFill(ledger.Fill{
		Instrument: inst,
		Asset:      kind,
		Side:       side,
		Quantity:   decimal.NewFromFloat(qty),
		Price:      decimal.NewFromFloat(price),
		Time:       t,
	})
	if err != nil {
		return err
	}
	notional := qty * price
	if kind == ledger.Option {
		notional *= optionMultiplier
	}
	if side == ledger.Buy {
		s.cash -= notional
	} else {
		s.cash += notional
	}
	return nil
}

// optionPrice returns a contract's close on one date, remembering it for
// mark-to-market.
func (s *session) optionPrice(ctx context.Context, occ string, day time.Time) (float64, bool) {
	q, ok, err := s.runner.md.GetOptionQuote(ctx, occ, day)
	if err != nil || !ok || q.Close <= 0 {
		return 0, false
	}
	s.lastPx[occ] = q.Close
	return q.Close, true
}

// mark appends the end-of-bar equity point: cash + stock at today's close +
// option legs at their latest known premium.
func (s *session) mark(ctx context.Context, bar marketdata.Bar) {
	stockQty, _ := s.book.NetQuantity(s.symbol).Float64()
	posValue := stockQty * bar.Close

	for _, inst := range s.book.OpenInstruments() {
		if inst == s.symbol {
			continue
		}
		if px, ok := s.optionPrice(ctx, inst, bar.Date); ok {
			s.lastPx[inst] = px
		}
		qty, _ := s.book.NetQuantity(inst).Float64()
		posValue += qty * s.lastPx[inst] * optionMultiplier
	}

	s.equity = append(s.equity, EquityPoint{
		Date:          bar.Date,
		Cash:          s.cash,
		PositionValue: posValue,
		Equity:        s.cash + posValue,
	})
}

// sectorTrend counts up- versus down-moves over the sector symbol's last
// five closes at or before day: +1 net rising, -1 net falling, 0 mixed.
func (s *session) sectorTrend(day time.Time) int {
	if len(s.sector) == 0 {
		return 0
	}
	var closes []float64
	for _, b := range s.sector {
		if b.Date.After(day) {
			break
		}
		closes = append(closes, b.Close)
	}
	if len(closes) > 5 {
		closes = closes[len(closes)-5:]
	}
	if len(closes) < 2 {
		return 0
	}
	ups, downs := 0, 0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			ups++
		case closes[i] < closes[i-1]:
			downs++
		}
	}
	switch {
	case ups > downs:
		return +1
	case downs > ups:
		return -1
	default:
		return 0
	}
}

// openPositionCount counts distinct instruments with open lots.
func (s *session) openPositionCount() int {
	return len(s.book.OpenInstruments())
}

func (s *session) skip(date time.Time, stage, reason string) {
	s.skips = append(s.skips, Skip{Date: date, Stage: stage, Reason: reason})
}
