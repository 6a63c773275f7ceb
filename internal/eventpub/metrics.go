package eventpub

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelswap",
		Subsystem: "eventpub",
		Name:      "published_total",
		Help:      "Events written to the broker",
	})
	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelswap",
		Subsystem: "eventpub",
		Name:      "dropped_total",
		Help:      "Events dropped because the queue was full",
	})
	writeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelswap",
		Subsystem: "eventpub",
		Name:      "write_failures_total",
		Help:      "Events the broker did not accept",
	})
)

func init() {
	prometheus.MustRegister(publishedTotal, droppedTotal, writeFailuresTotal)
}
