package backtest

import (
	"time"

	"algotrade/ledger"
)

// State is the runner lifecycle. A run is single-pass: no retry, no
// resume. Failures surface whatever partial ledger/equity the run produced.
type State string

const (
	StateIdle     State = "idle"
	StateLoaded   State = "loaded"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// EquityPoint is one end-of-bar mark of the portfolio.
type EquityPoint struct {
	Date          time.Time `json:"date"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
	Equity        float64   `json:"equity"`
}

// Skip annotates a bar where an action could not be taken. Skips are
// informational: a run always completes and reports them alongside its
// results.
type Skip struct {
	Date   time.Time `json:"date"`
	Stage  string    `json:"stage"`
	Reason string    `json:"reason"`
}

// Summary is the run-level report, stable schema for export.
type Summary struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	InitialCash    float64 `json:"initial_cash"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGRPct        float64 `json:"cagr_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	NumTrades      int     `json:"num_trades"`
}

// Result is the full output for one symbol.
type Result struct {
	Symbol  string         `json:"symbol"`
	Trades  []ledger.Trade `json:"trades"`
	Equity  []EquityPoint  `json:"equity"`
	Summary Summary        `json:"summary"`
	Skips   []Skip         `json:"skips,omitempty"`
	Error   string         `json:"error,omitempty"`
}
