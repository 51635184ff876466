// Package metrics exposes the engine's Prometheus instrumentation. All
// collectors are registered on the default registry; the API server serves
// them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ticks counts market data poll cycles, by outcome.
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algotrade",
		Name:      "ticks_total",
		Help:      "Market data poll cycles by outcome.",
	}, []string{"outcome"})

	// Orders counts broker submissions by side and result.
	Orders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algotrade",
		Name:      "orders_total",
		Help:      "Broker order submissions by side and result.",
	}, []string{"side", "result"})

	// Signals counts rule firings by rule name.
	Signals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algotrade",
		Name:      "signals_total",
		Help:      "Strategy rule firings by rule.",
	}, []string{"rule"})

	// Reconnects counts broker/data reconnection attempts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "algotrade",
		Name:      "reconnects_total",
		Help:      "Reconnection attempts after a port failure.",
	})

	// ReconcileDrift counts position mismatches found against the broker.
	ReconcileDrift = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "algotrade",
		Name:      "reconcile_drift_total",
		Help:      "Ledger vs broker position mismatches detected.",
	})

	// Cash is the engine's last known buying power.
	Cash = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "algotrade",
		Name:      "cash_usd",
		Help:      "Available cash reported by the broker.",
	})

	// Equity is the last mark of cash plus position value.
	Equity = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "algotrade",
		Name:      "equity_usd",
		Help:      "Marked portfolio equity.",
	})

	// OpenPositions is the current count of open instruments.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "algotrade",
		Name:      "open_positions",
		Help:      "Distinct instruments with open lots.",
	})

	// WSClients is the number of connected websocket subscribers.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "algotrade",
		Name:      "ws_clients",
		Help:      "Connected websocket stream clients.",
	})
)
