package session

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsByState = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instructd",
			Subsystem: "session",
			Name:      "terminal_total",
			Help:      "Sessions reaching a terminal state",
		},
		[]string{"state"},
	)

	tokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "instructd",
			Subsystem: "session",
			Name:      "tokens_total",
			Help:      "Token chunks emitted across all sessions",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "instructd",
			Subsystem: "session",
			Name:      "queue_depth",
			Help:      "Sessions waiting for the device",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "instructd",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions holding the device (0 or 1)",
		},
	)

	queueFullTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "instructd",
			Subsystem: "session",
			Name:      "queue_full_total",
			Help:      "Submissions rejected by the bounded queue",
		},
	)
)

func init() {
	prometheus.MustRegister(sessionsByState, tokensTotal, queueDepth, activeSessions, queueFullTotal)
}
