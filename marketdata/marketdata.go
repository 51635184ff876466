// Package marketdata defines the market-data port consumed by the engine
// and its concrete providers (Alpaca-style REST, CSV files). The engine
// assumes clean, deduplicated daily bars; providers sort and dedupe before
// returning.
package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrNoData reports that a provider had no bars for the requested symbol
// and range. Callers treat it as "skip", not as a fault.
var ErrNoData = errors.New("marketdata: no data for symbol/range")

// Bar is one daily OHLCV record for an underlying.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Quote is a daily close/volume observation for an option contract.
type Quote struct {
	Close  float64
	Volume int64
}

// Port is the capability interface the engine consumes. A missing option
// quote is (zero, false, nil) — a data gap, not an error.
type Port interface {
	// GetDailyBars returns bars ordered by date, one per trading day,
	// within [start, end] inclusive.
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)

	// GetOptionQuote returns the daily bar for an OCC contract identifier
	// on one date. ok is false when no bar exists.
	GetOptionQuote(ctx context.Context, occ string, day time.Time) (Quote, bool, error)
}

// DateKey formats a date the way providers and caches key it.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }
