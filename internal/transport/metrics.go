package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics instruments the HTTP binding.
type metrics struct {
	// requests counts requests by route and outcome code ("ok" or a qerr code).
	requests *prometheus.CounterVec

	// latency measures handler time by route.
	latency *prometheus.HistogramVec

	// results tracks records returned per query and the counted total per count.
	results *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remoteq",
			Subsystem: "endpoint",
			Name:      "requests_total",
			Help:      "Total requests by route and outcome code",
		}, []string{"route", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "remoteq",
			Subsystem: "endpoint",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route"}),
		results: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "remoteq",
			Subsystem: "endpoint",
			Name:      "results",
			Help:      "Records returned per query, or the count per count request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"route"}),
	}
}
