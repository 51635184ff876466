// Package sizing converts available cash and percentage policies into
// concrete order sizes, and enforces the entry floors shared by the
// backtest and live engines.
package sizing

import "math"

// Limits are the entry floors. Zero values fall back to the defaults the
// live engine has always run with.
type Limits struct {
	MinCashUSD       float64 `yaml:"min_cash_usd" json:"min_cash_usd"`
	MinPriceUSD      float64 `yaml:"min_price_usd" json:"min_price_usd"`
	MaxOpenPositions int     `yaml:"max_open_positions" json:"max_open_positions"`
}

func (l Limits) WithDefaults() Limits {
	if l.MinCashUSD <= 0 {
		l.MinCashUSD = 100
	}
	if l.MinPriceUSD <= 0 {
		l.MinPriceUSD = 2
	}
	if l.MaxOpenPositions <= 0 {
		l.MaxOpenPositions = 10
	}
	return l
}

// Reject explains why an entry was refused. Empty means allowed.
type Reject string

const (
	RejectNone         Reject = ""
	RejectCashFloor    Reject = "cash_below_min"
	RejectPriceFloor   Reject = "price_below_min"
	RejectPositionCap  Reject = "max_open_positions"
	RejectZeroNotional Reject = "zero_notional"
)

// CanEnter applies the floors to a prospective new entry.
func (l Limits) CanEnter(cash, lastPrice float64, openPositions int) Reject {
	l = l.WithDefaults()
	if cash < l.MinCashUSD {
		return RejectCashFloor
	}
	if lastPrice < l.MinPriceUSD {
		return RejectPriceFloor
	}
	if openPositions >= l.MaxOpenPositions {
		return RejectPositionCap
	}
	return RejectNone
}

// StockNotional is the cash-fraction notional for a stock order. Quantity
// is derived downstream by dividing by the execution price.
func StockNotional(cash, pct float64) float64 {
	if cash <= 0 || pct <= 0 {
		return 0
	}
	return cash * pct
}

// StockQuantity converts a notional into shares. Backtests allow fractional
// shares; live brokers want whole ones.
func StockQuantity(notional, price float64, fractional bool) float64 {
	if notional <= 0 || price <= 0 {
		return 0
	}
	q := notional / price
	if !fractional {
		q = math.Floor(q)
	}
	return q
}

// OptionContracts floors a cash fraction to whole contracts. At least one
// contract is bought when the fraction rounds to zero but the premium is
// still affordable; 0 means "no order".
func OptionContracts(cash, pct, contractPrice float64, multiplier int) int {
	if multiplier <= 0 {
		multiplier = 100
	}
	if cash <= 0 || pct <= 0 || contractPrice <= 0 {
		return 0
	}
	premium := contractPrice * float64(multiplier)
	n := int(math.Floor(cash * pct / premium))
	if n < 1 {
		n = 1
	}
	if float64(n)*premium > cash {
		return 0
	}
	return n
}
