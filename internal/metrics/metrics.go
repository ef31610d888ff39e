// Package metrics exposes the position manager's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "position_guard"

// CyclesTotal counts polling cycles by outcome (processed, halted, fetch_failed).
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Total number of polling cycles by outcome",
	},
	[]string{"outcome"},
)

// CycleDuration observes how long a processed cycle took.
var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one processed polling cycle",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
	},
)

// PositionsSeen is the number of open positions returned by the last fetch.
var PositionsSeen = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "positions_seen",
		Help:      "Open positions returned by the last successful fetch",
	},
)

// PositionsSkipped counts positions filtered out before any action, by reason.
var PositionsSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "positions_skipped_total",
		Help:      "Positions skipped by a filter",
	},
	[]string{"reason"},
)

// ActionsTotal counts executed or simulated actions.
var ActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "actions_total",
		Help:      "Actions taken on positions by kind and mode",
	},
	[]string{"kind", "mode"},
)

// ErrorsTotal counts failures that feed the error threshold.
var ErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "errors_total",
		Help:      "Errors counted toward the emergency threshold",
	},
	[]string{"stage"},
)

// DailyTrades mirrors the daily trade counter.
var DailyTrades = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "daily_trades",
		Help:      "Trades counted since the last daily reset",
	},
)

// ErrorCount mirrors the error counter.
var ErrorCount = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "error_count",
		Help:      "Errors counted since the last daily reset",
	},
)

// EmergencyActive is 1 while the emergency brake is engaged.
var EmergencyActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "risk",
		Name:      "emergency_active",
		Help:      "1 while processing is halted by the emergency brake",
	},
)

// Mode returns the label value for an action's execution mode.
func Mode(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "live"
}
