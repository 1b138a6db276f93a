// Package metrics declares the prometheus metrics of the board client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Lifecycle metrics - Track deployments and provider initialization
var (
	DeploymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bboard_deployments_total",
			Help: "Total number of finished deployments by kind and status",
		},
		[]string{"kind", "status"},
	)

	DeploymentsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bboard_deployments_in_flight",
		Help: "Number of deployments that have not finished yet",
	})
)

// Contract metrics - Track circuit calls and observed ledger changes
var (
	CircuitCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bboard_circuit_calls_total",
			Help: "Total number of circuit calls by circuit and result",
		},
		[]string{"circuit", "result"},
	)

	CircuitCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bboard_circuit_call_duration_seconds",
			Help:    "Time from local execution to finalization of a circuit call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"circuit"},
	)

	LedgerUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bboard_ledger_updates_total",
		Help: "Total number of ledger states observed",
	})
)

// Result returns the result label for err.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
