// Package broker defines the order-routing capability the live engine
// consumes. One implementation per backend, selected by configuration at
// startup — never by runtime probing.
package broker

import (
	"context"
	"errors"
)

// ErrNotConnected reports a transport failure. The live engine retries
// with backoff; a backtest never sees it.
var ErrNotConnected = errors.New("broker: not connected")

// Side of a market order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Order is a submitted market order. Either Quantity or Notional is set;
// the broker resolves the other at fill time.
type Order struct {
	Instrument string
	Side       Side
	Quantity   float64
	Notional   float64
}

// Port is the broker capability. All calls are synchronous with
// caller-defined timeouts via ctx.
type Port interface {
	GetCash(ctx context.Context) (float64, error)
	GetOpenPositions(ctx context.Context) (map[string]float64, error)
	SubmitMarketOrder(ctx context.Context, o Order) (orderID string, err error)
	ClosePosition(ctx context.Context, instrument string) error
}
