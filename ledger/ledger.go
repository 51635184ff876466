// Package ledger is the single authoritative record of executed fills. It
// keeps a LIFO lot stack per instrument for cost-basis and realized P&L,
// plus an append-only trade list for audit and reporting. All arithmetic is
// decimal so accounting never drifts with float rounding.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrOverSell reports a sell fill larger than the open quantity. That only
// happens on an upstream bug (duplicate fill, bad reconciliation), so the
// fill is rejected outright — clamping would silently corrupt P&L history.
var ErrOverSell = errors.New("ledger: sell exceeds open quantity")

// Side of a fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// AssetKind distinguishes stock from option fills in the audit trail.
type AssetKind string

const (
	Stock  AssetKind = "stock"
	Option AssetKind = "option"
)

// Fill is the atomic unit the accountant consumes: one executed order.
type Fill struct {
	Instrument string // symbol or OCC contract identifier
	Asset      AssetKind
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Time       time.Time
}

// Trade is one audit row derived from a fill. Independent of the lot
// stacks; reporting views read these, never recompute positions themselves.
type Trade struct {
	Date       time.Time       `json:"date"`
	Instrument string          `json:"instrument"`
	Asset      AssetKind       `json:"asset"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Notional   decimal.Decimal `json:"notional"`
}

// lot is one open purchase. The stack top is the most recent lot.
type lot struct {
	qty      decimal.Decimal
	unitCost decimal.Decimal
	openedAt time.Time
}

// Position is a read-only projection of one instrument's stack.
type Position struct {
	Instrument  string          `json:"instrument"`
	NetQuantity decimal.Decimal `json:"net_quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
}

// Ledger owns the lot stacks. Not safe for concurrent use; each logical
// instrument worker owns its fills.
type Ledger struct {
	stacks   map[string][]lot
	trades   []Trade
	realized map[string]decimal.Decimal
}

func New() *Ledger {
	return &Ledger{
		stacks:   make(map[string][]lot),
		realized: make(map[string]decimal.Decimal),
	}
}

// ApplyFill records a fill and returns the realized P&L delta it produced
// (zero for buys). A rejected fill leaves the ledger untouched.
func (l *Ledger) ApplyFill(f Fill) (decimal.Decimal, error) {
	if f.Quantity.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("ledger: non-positive fill quantity %s for %s", f.Quantity, f.Instrument)
	}

	var realized decimal.Decimal
	switch f.Side {
	case Buy:
		l.stacks[f.Instrument] = append(l.stacks[f.Instrument], lot{
			qty:      f.Quantity,
			unitCost: f.Price,
			openedAt: f.Time,
		})
	case Sell:
		var err error
		realized, err = l.consume(f)
		if err != nil {
			return decimal.Zero, err
		}
		l.realized[f.Instrument] = l.realized[f.Instrument].Add(realized)
	default:
		return decimal.Zero, fmt.Errorf("ledger: unknown side %q", f.Side)
	}

	l.trades = append(l.trades, Trade{
		Date:       f.Time,
		Instrument: f.Instrument,
		Asset:      f.Asset,
		Side:       f.Side,
		Quantity:   f.Quantity,
		Price:      f.Price,
		Notional:   f.Quantity.Mul(f.Price),
	})
	return realized, nil
}

// consume pops lots from the top of the stack until the sell quantity is
// exhausted, splitting the top lot when it is larger than the remainder.
func (l *Ledger) consume(f Fill) (decimal.Decimal, error) {
	stack := l.stacks[f.Instrument]

	var open decimal.Decimal
	for _, lo := range stack {
		open = open.Add(lo.qty)
	}
	if f.Quantity.GreaterThan(open) {
		return decimal.Zero, fmt.Errorf("%w: %s sell %s > open %s", ErrOverSell, f.Instrument, f.Quantity, open)
	}

	remaining := f.Quantity
	var costBasis decimal.Decimal
	for remaining.Sign() > 0 {
		top := &stack[len(stack)-1]
		if top.qty.GreaterThan(remaining) {
			costBasis = costBasis.Add(remaining.Mul(top.unitCost))
			top.qty = top.qty.Sub(remaining)
			remaining = decimal.Zero
		} else {
			costBasis = costBasis.Add(top.qty.Mul(top.unitCost))
			remaining = remaining.Sub(top.qty)
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) == 0 {
		delete(l.stacks, f.Instrument)
	} else {
		l.stacks[f.Instrument] = stack
	}

	proceeds := f.Quantity.Mul(f.Price)
	return proceeds.Sub(costBasis), nil
}

// NetQuantity is the sum of open lot quantities. Never negative.
func (l *Ledger) NetQuantity(instrument string) decimal.Decimal {
	var q decimal.Decimal
	for _, lo := range l.stacks[instrument] {
		q = q.Add(lo.qty)
	}
	return q
}

// CostBasis is the total cost of the open lots.
func (l *Ledger) CostBasis(instrument string) decimal.Decimal {
	var c decimal.Decimal
	for _, lo := range l.stacks[instrument] {
		c = c.Add(lo.qty.Mul(lo.unitCost))
	}
	return c
}

// UnrealizedPnL marks the open lots against a price.
func (l *Ledger) UnrealizedPnL(instrument string, mark decimal.Decimal) decimal.Decimal {
	qty := l.NetQuantity(instrument)
	if qty.Sign() == 0 {
		return decimal.Zero
	}
	return mark.Mul(qty).Sub(l.CostBasis(instrument))
}

// RealizedPnL is the cumulative realized P&L for one instrument.
func (l *Ledger) RealizedPnL(instrument string) decimal.Decimal {
	return l.realized[instrument]
}

// Position projects one instrument's open state.
func (l *Ledger) Position(instrument string) Position {
	return Position{
		Instrument:  instrument,
		NetQuantity: l.NetQuantity(instrument),
		CostBasis:   l.CostBasis(instrument),
	}
}

// OpenInstruments lists instruments with at least one open lot.
func (l *Ledger) OpenInstruments() []string {
	out := make([]string, 0, len(l.stacks))
	for k := range l.stacks {
		out = append(out, k)
	}
	return out
}

// Trades returns the audit trail. The slice is shared; callers must not
// mutate it.
func (l *Ledger) Trades() []Trade {
	return l.trades
}
