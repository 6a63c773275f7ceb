package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	swapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelswap",
			Subsystem: "manager",
			Name:      "swaps_total",
			Help:      "Update attempts by result (success, failure, rejected)",
		},
		[]string{"result"},
	)

	servesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelswap",
			Subsystem: "manager",
			Name:      "serves_total",
			Help:      "Serve calls by result (ok, error, not_ready)",
		},
		[]string{"result"},
	)

	activeVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelswap",
			Subsystem: "manager",
			Name:      "active_version",
			Help:      "Version of the artifact currently served",
		},
	)

	updatingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelswap",
			Subsystem: "manager",
			Name:      "updating",
			Help:      "1 while a load is in flight",
		},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelswap",
			Subsystem: "manager",
			Name:      "load_duration_seconds",
			Help:      "Duration of artifact loads in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)
)

func init() {
	prometheus.MustRegister(swapsTotal, servesTotal, activeVersion, updatingGauge, loadDuration)
}
