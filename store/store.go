// Package store persists run artifacts: the trade audit trail and the
// equity series, keyed by run ID. Postgres is the durable backend; the
// in-memory store backs tests and throwaway runs. The engine core never
// depends on this package — callers map domain values into rows.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound reports an unknown run ID.
var ErrRunNotFound = errors.New("store: run not found")

// Run describes one backtest run or live session.
type Run struct {
	ID          string
	Symbol      string
	Start       time.Time
	End         time.Time
	InitialCash float64
	CreatedAt   time.Time
}

// TradeRow is one persisted trade record.
type TradeRow struct {
	Date       time.Time
	Instrument string
	Asset      string
	Side       string
	Quantity   float64
	Price      float64
	Notional   float64
}

// EquityRow is one persisted equity mark.
type EquityRow struct {
	Date          time.Time
	Cash          float64
	PositionValue float64
	Equity        float64
}

// Store is the persistence interface.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	InsertTrade(ctx context.Context, runID string, t TradeRow) error
	InsertEquityPoint(ctx context.Context, runID string, p EquityRow) error
	ListTrades(ctx context.Context, runID string) ([]TradeRow, error)
	ListEquity(ctx context.Context, runID string) ([]EquityRow, error)
}
