package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RestAPI exports per-route HTTP measurements, separate from the
// Simulator histograms: these track the transport, not the simulation.
var RestAPI = RestAPIExporter{
	total: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simulator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "How many HTTP requests were handled.",
		},
		[]string{"method", "path", "status"},
	),
	duration: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simulator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "How long it took to handle the request, injected latency included.",
			Buckets:   defaultLatencyBuckets,
		},
		[]string{"method", "path", "status"},
	),
}

type RestAPIExporter struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func (r *RestAPIExporter) NewRequest(method string, path string, status string, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}

	r.total.With(labels).Inc()
	r.duration.With(labels).Observe(duration.Seconds())
}
