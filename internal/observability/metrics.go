// Package observability provides Prometheus metrics for the gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts chat requests by dialect, model and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_requests_total",
			Help: "Total chat requests",
		},
		[]string{"dialect", "model", "status"},
	)

	// RequestDuration records end-to-end request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrix_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"dialect", "model"},
	)

	// StreamingConnections tracks the number of active SSE streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrix_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// BackendTokensTotal counts tokens by backend model and direction.
	BackendTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_backend_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// CostTotal accumulates estimated cost by backend model and currency.
	CostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_cost_total",
			Help: "Estimated cost",
		},
		[]string{"model", "currency"},
	)

	// DecodeEmptyEventsTotal counts backend events that carried no content.
	DecodeEmptyEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrix_decode_empty_events_total",
			Help: "Backend stream events without usable content",
		},
		[]string{"family"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		BackendTokensTotal,
		CostTotal,
		DecodeEmptyEventsTotal,
	)
}

// StatusClass buckets an HTTP status code as "2xx", "4xx", ...
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
