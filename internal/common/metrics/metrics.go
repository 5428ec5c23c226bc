package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_outcomes_total",
			Help: "Registration submissions by transport, mode and outcome",
		},
		[]string{"transport", "mode", "outcome"},
	)

	RegistrationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_rejections_total",
			Help: "Rejected submissions by error code and field",
		},
		[]string{"error_code", "field"},
	)

	RegistrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registration_duration_seconds",
			Help:    "End-to-end registration processing time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "outcome"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_call_duration_seconds",
			Help:    "ERP call latency by stage and status class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	RegistrationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registrations_in_flight",
			Help: "Registrations currently being processed",
		},
	)

	CatalogCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_lookups_total",
			Help: "Catalog snapshot cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// StatusClass buckets an HTTP status for labels; 0 means a transport error.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status == 409:
		return "409"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
