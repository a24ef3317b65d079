package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MatchingRuns counts matching passes by market.
var MatchingRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "exchange_matching_runs_total",
		Help: "Total number of matching passes executed per market",
	},
	[]string{"market"},
)

// TradesSettled counts successfully settled trades by market.
var TradesSettled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "exchange_trades_settled_total",
		Help: "Total number of trades settled per market",
	},
	[]string{"market"},
)

// SettlementConflicts counts settlement attempts lost to a concurrent
// pass (stale status or failed conditional update).
var SettlementConflicts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "exchange_settlement_conflicts_total",
		Help: "Total number of settlement attempts aborted because another process claimed an order",
	},
	[]string{"market"},
)

// NotificationFailures counts fill notifications that could not be dispatched.
var NotificationFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "exchange_notification_failures_total",
		Help: "Total number of order-fill notifications that failed to dispatch",
	},
)

// MatchingLatency records latency distribution for a full matching pass.
var MatchingLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "exchange_matching_pass_latency_seconds",
		Help:    "Latency in seconds of a full matching pass over one market",
		Buckets: prometheus.DefBuckets,
	},
)

// Register registers all metrics with the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		MatchingRuns,
		TradesSettled,
		SettlementConflicts,
		NotificationFailures,
		MatchingLatency,
	)
}
