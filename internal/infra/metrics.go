// Prometheus metrics for the trading engine. Served at /metrics by
// cmd/trader; the controller and coordinator update them inline.
package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Market orders placed, by side and outcome",
		},
		[]string{"side", "outcome"}, // outcome: filled|cancelled|failed
	)

	MtxSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Strategy verdicts, by signal",
		},
		[]string{"signal"}, // long|short|flat
	)

	MtxStateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_state_transitions_total",
			Help: "Controller state transitions, by target state",
		},
		[]string{"state"},
	)

	MtxForcedCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_forced_closes_total",
			Help: "Forced position closes, by reason",
		},
		[]string{"reason"}, // liquidation|ladder_exhausted
	)

	MtxLadderDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_ladder_depth",
			Help: "Filled layers of the open position ladder",
		},
	)

	MtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trader_realized_pnl",
			Help: "Cumulative realized PnL in quote units",
		},
	)

	MtxOrderRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_order_retries_total",
			Help: "Order submission attempts beyond the first",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MtxOrders,
		MtxSignals,
		MtxStateTransitions,
		MtxForcedCloses,
		MtxLadderDepth,
		MtxRealizedPnL,
		MtxOrderRetries,
	)
}

// MetricsHandler serves the Prometheus text exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
