package rollout

import "github.com/prometheus/client_golang/prometheus"

var (
	rolloutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelswap",
			Subsystem: "rollout",
			Name:      "rollouts_total",
			Help:      "Rollouts by terminal reason",
		},
		[]string{"reason"},
	)

	rolloutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelswap",
			Subsystem: "rollout",
			Name:      "duration_seconds",
			Help:      "Wall time of rollouts in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	dispatchTransportFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelswap",
			Subsystem: "rollout",
			Name:      "dispatch_transport_failures_total",
			Help:      "Update dispatch attempts that failed at the transport level",
		},
	)
)

func init() {
	prometheus.MustRegister(rolloutsTotal, rolloutDuration, dispatchTransportFailures)
}
