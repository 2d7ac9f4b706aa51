// Package metrics provides Prometheus instrumentation for the deal room agents.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dealroom",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// UpdatesTotal counts inbound chat updates by kind.
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "updates_total",
			Help:      "Total chat updates processed by kind.",
		},
		[]string{"kind"},
	)

	// StepAdvancesTotal counts state machine advances by target step.
	StepAdvancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "step_advances_total",
			Help:      "Total deal step advances by target step.",
		},
		[]string{"step"},
	)

	// ValidationRejectsTotal counts rejected participant inputs by step.
	ValidationRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "validation_rejects_total",
			Help:      "Total rejected inputs by step.",
		},
		[]string{"step"},
	)

	// ProvisionRequestsTotal counts room requests by terminal status.
	ProvisionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "provision_requests_total",
			Help:      "Total provisioning requests by terminal status.",
		},
		[]string{"status"},
	)

	// DepositsVerifiedTotal counts deposit verifications by result.
	DepositsVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dealroom",
			Name:      "deposits_verified_total",
			Help:      "Total deposit hash verifications by result.",
		},
		[]string{"result"},
	)

	// DealsCompletedTotal counts deals that passed the release gate.
	DealsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dealroom",
		Name:      "deals_completed_total",
		Help:      "Total deals completed (both parties approved release).",
	})

	// DealDuration observes time from deal start to completion.
	DealDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dealroom",
		Name:      "deal_duration_seconds",
		Help:      "Time from deal start to release approval in seconds.",
		Buckets:   []float64{60, 300, 600, 1800, 3600, 7200, 86400},
	})

	// ActiveSessions tracks rooms with a live deal session.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealroom",
		Name:      "active_sessions",
		Help:      "Number of rooms with an active deal session.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealroom",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpdatesTotal,
		StepAdvancesTotal,
		ValidationRejectsTotal,
		ProvisionRequestsTotal,
		DepositsVerifiedTotal,
		DealsCompletedTotal,
		DealDuration,
		ActiveSessions,
		ActiveWebSocketClients,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
