// Package metrics exposes the Prometheus instruments for the decision core
// and the dispatch path. Collectors register on the default registry; the
// gateway serves them at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tributary-ai/llm-dispatch/internal/types"
)

var (
	OverallScoreGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_dispatch_backend_overall_score",
			Help: "Weighted overall score from the last decision that considered the backend (0.0-1.0)",
		},
		[]string{"backend"},
	)

	PrivacyScoreGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_dispatch_backend_privacy_score",
			Help: "Privacy factor score from the last decision (0.0-1.0)",
		},
		[]string{"backend"},
	)

	CostScoreGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_dispatch_backend_cost_score",
			Help: "Cost factor score from the last decision (normalized, cheaper is higher)",
		},
		[]string{"backend"},
	)

	CapabilityScoreGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_dispatch_backend_capability_score",
			Help: "Capability factor score from the last decision (0.0-1.0)",
		},
		[]string{"backend"},
	)

	LatencyScoreGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_dispatch_backend_latency_score",
			Help: "Latency factor score from the last decision (normalized, faster is higher)",
		},
		[]string{"backend"},
	)

	DispatchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_dispatch_requests_total",
			Help: "Dispatches by backend, routing mode, and outcome",
		},
		[]string{"backend", "mode", "status"},
	)

	RoutingFailureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_dispatch_routing_failures_total",
			Help: "Routing failures by kind (no_route, no_backends)",
		},
		[]string{"kind"},
	)

	AdapterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_dispatch_adapter_duration_seconds",
			Help:    "Wall time of backend adapter invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_dispatch_http_request_duration_seconds",
			Help:    "Gateway request latency by method, route, and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordFactorScores publishes one backend's per-factor breakdown.
func RecordFactorScores(backend string, scores types.FactorScores) {
	OverallScoreGauge.WithLabelValues(backend).Set(scores.Overall)
	PrivacyScoreGauge.WithLabelValues(backend).Set(scores.Privacy)
	CostScoreGauge.WithLabelValues(backend).Set(scores.Cost)
	CapabilityScoreGauge.WithLabelValues(backend).Set(scores.Capability)
	LatencyScoreGauge.WithLabelValues(backend).Set(scores.Latency)
}

// RecordDispatch counts one dispatch outcome.
func RecordDispatch(backend string, mode types.RoutingMode, status string) {
	DispatchCounter.WithLabelValues(backend, string(mode), status).Inc()
}

// RecordRoutingFailure counts a routing failure by kind.
func RecordRoutingFailure(kind string) {
	RoutingFailureCounter.WithLabelValues(kind).Inc()
}

// ObserveAdapterDuration records the wall time of one adapter invocation.
func ObserveAdapterDuration(backend string, d time.Duration) {
	AdapterDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveHTTPRequest records the latency of one gateway request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
