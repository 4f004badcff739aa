package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var defaultLatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Simulator exports the core simulation measurements: how long requests
// take before and after latency injection, and the simulated token usage.
var Simulator = SimulatorExporter{
	latencyBase: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simulator",
			Name:      "latency_base_seconds",
			Help:      "Latency of handling the request before the simulated latency is added.",
			Buckets:   defaultLatencyBuckets,
		},
		[]string{"deployment", "status"},
	),
	latencyFull: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simulator",
			Name:      "latency_full_seconds",
			Help:      "Full latency of handling the request including the simulated latency.",
			Buckets:   defaultLatencyBuckets,
		},
		[]string{"deployment", "status"},
	),
	tokensRequested: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simulator",
			Name:      "tokens_requested",
			Help:      "Number of tokens across all requests, successful or not.",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		},
		[]string{"deployment"},
	),
	tokensUsed: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simulator",
			Name:      "tokens_used",
			Help:      "Number of tokens used per successful request.",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12),
		},
		[]string{"deployment"},
	),
}

type SimulatorExporter struct {
	latencyBase     *prometheus.HistogramVec
	latencyFull     *prometheus.HistogramVec
	tokensRequested *prometheus.HistogramVec
	tokensUsed      *prometheus.HistogramVec
}

// RequestHandled records one pass through the simulation pipeline.
// Tokens count towards tokens_used only when the request succeeded.
func (s *SimulatorExporter) RequestHandled(deployment string, statusCode int, tokens int, base, full time.Duration) {
	labels := prometheus.Labels{
		"deployment": deployment,
		"status":     strconv.Itoa(statusCode),
	}

	s.latencyBase.With(labels).Observe(base.Seconds())
	s.latencyFull.With(labels).Observe(full.Seconds())

	if tokens <= 0 {
		return
	}

	s.tokensRequested.With(prometheus.Labels{"deployment": deployment}).Observe(float64(tokens))
	if statusCode < 300 {
		s.tokensUsed.With(prometheus.Labels{"deployment": deployment}).Observe(float64(tokens))
	}
}
