package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "complaintdesk_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_auth_failures_total",
		Help: "Count of rejected requests by failure reason",
	}, []string{"reason"})

	complaintOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_complaint_operations_total",
		Help: "Count of complaint operations by operation and result",
	}, []string{"operation", "result"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_status_transitions_total",
		Help: "Count of complaint status changes by target status",
	}, []string{"to"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAuthFailure increments the auth failure counter.
// Reasons: unauthenticated, forbidden_role, no_tenant, unsupported_tenant, rate_limited, permission.
func ObserveAuthFailure(reason string) {
	authFailures.WithLabelValues(reason).Inc()
}

// ObserveComplaintOperation records the outcome of a complaint operation.
func ObserveComplaintOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	complaintOperations.WithLabelValues(operation, result).Inc()
}

// ObserveStatusTransition records a status change to the given status.
func ObserveStatusTransition(to string) {
	statusTransitions.WithLabelValues(to).Inc()
}
