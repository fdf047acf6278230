package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	holdsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_holds_created_total",
		Help: "Line holds inserted by reservations.",
	})

	holdsExtendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_holds_extended_total",
		Help: "Line holds whose expiry was pushed forward.",
	})

	reserveConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linevault_reserve_conflicts_total",
		Help: "Reservations rejected because a line was held or sold.",
	}, []string{"reason"})

	reserveRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_reserve_retries_total",
		Help: "Reservation transactions retried after losing an insert race.",
	})

	linesSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_lines_sold_total",
		Help: "Line holds moved to sold.",
	})

	salesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_sales_recorded_total",
		Help: "Sale confirmations recorded.",
	})

	holdsExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linevault_holds_expired_total",
		Help: "Line holds moved to expired, by reason (sweep, lazy, cancel).",
	}, []string{"reason"})

	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_sweep_runs_total",
		Help: "Reaper sweeps attempted.",
	})

	sweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linevault_sweep_failures_total",
		Help: "Reaper sweeps that returned an error.",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "linevault_sweep_duration_seconds",
		Help:    "Duration of reaper sweeps.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)
