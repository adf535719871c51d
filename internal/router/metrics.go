package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt outcomes used as metric label values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
)

var (
	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "router",
			Name:      "attempts_total",
			Help:      "Backend attempts by outcome",
		},
		[]string{"backend", "outcome"},
	)

	attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelkit",
			Subsystem: "router",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of backend attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "outcome"},
	)

	fallbackFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelkit",
			Subsystem: "router",
			Name:      "fallback_failed_total",
			Help:      "Requests no backend could serve",
		},
	)
)

func init() {
	prometheus.MustRegister(attemptsTotal, attemptDuration, fallbackFailedTotal)
}

func observeAttempt(backend, outcome string, start time.Time) {
	attemptsTotal.WithLabelValues(backend, outcome).Inc()
	if outcome != outcomeSkipped {
		attemptDuration.WithLabelValues(backend, outcome).Observe(time.Since(start).Seconds())
	}
}
