package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractiz_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "fractiz_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	MasteryUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractiz_mastery_updates_total",
			Help: "Total number of applied mastery updates",
		},
		[]string{"strategy", "correct"},
	)

	MasteryUpdateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fractiz_mastery_update_failures_total",
			Help: "Total number of mastery updates aborted by a store failure",
		},
	)

	CorruptStateResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fractiz_corrupt_state_resets_total",
			Help: "Total number of student states reset to the prior after failing validation",
		},
	)

	LockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fractiz_lock_wait_seconds",
			Help:    "Time spent waiting for the per-student lock",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	Selections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fractiz_selections_total",
			Help: "Next-item selections by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fractiz_active_sessions",
			Help: "Number of sessions begun in this process",
		},
	)
)

// Selection outcomes.
const (
	OutcomeExact      = "exact"
	OutcomeRelaxed    = "relaxed"
	OutcomeComplete   = "complete"
	OutcomeNoQuestion = "no_question"
)
