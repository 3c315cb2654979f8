package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymweb_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gymweb_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RefreshTotal counts refresh attempts by outcome: success, expired, shared.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymweb_session_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ValidateTotal counts validate calls by outcome: cached, remote, rejected.
	ValidateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymweb_session_validate_total",
			Help: "Server-side token validations by outcome.",
		},
		[]string{"outcome"},
	)

	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymweb_guard_decisions_total",
			Help: "Route guard decisions.",
		},
		[]string{"guard", "decision"},
	)

	UnauthorizedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymweb_upstream_unauthorized_total",
			Help: "Upstream 401 responses seen by the request interceptor.",
		},
	)
)
