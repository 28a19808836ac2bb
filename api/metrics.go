/*
metrics.go - Prometheus instrumentation

Counters cover the three ledger write paths: accrual, leave decisions,
and the expiry sweep. Each Metrics value carries its own registry so
handlers can be constructed repeatedly in tests without duplicate
registration panics. Exposed on /metrics via promhttp.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Registry *prometheus.Registry

	AccrualsTotal       prometheus.Counter
	HoursAccruedTotal   prometheus.Counter
	SweepRunsTotal      prometheus.Counter
	EntriesExpiredTotal prometheus.Counter
	LeaveDecisionsTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		AccrualsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "toil_accruals_total",
			Help: "Number of overtime accrual entries written.",
		}),
		HoursAccruedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "toil_hours_accrued_total",
			Help: "Total TOIL hours accrued.",
		}),
		SweepRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "toil_sweep_runs_total",
			Help: "Number of expiry sweep executions.",
		}),
		EntriesExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "toil_entries_expired_total",
			Help: "Number of expiry entries written by the sweep.",
		}),
		LeaveDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "toil_leave_decisions_total",
			Help: "Leave request decisions by outcome.",
		}, []string{"outcome"}),
	}
}
