// Package metrics registers the Prometheus instruments for account
// operations and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AccountsCreated prometheus.Counter
	Operations      *prometheus.CounterVec
	OperationErrors *prometheus.CounterVec
	ExternalCalls   *prometheus.CounterVec
	SignedRequests  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acctgate_accounts_created_total",
			Help: "Total number of accounts initialized.",
		}),
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acctgate_operations_total",
			Help: "Account operations by action.",
		}, []string{"action"}),
		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acctgate_operation_errors_total",
			Help: "Rejected account operations by action and error code.",
		}, []string{"action", "code"}),
		ExternalCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acctgate_external_calls_total",
			Help: "Execute-step external calls by outcome.",
		}, []string{"outcome"}),
		SignedRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acctgate_signed_requests_total",
			Help: "Signature-path requests by outcome.",
		}, []string{"outcome"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acctgate_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
