// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	viewSessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_sessions_opened_total",
			Help: "View sessions opened by the access gate",
		},
		[]string{"unique"},
	)

	telemetryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_total",
			Help: "Telemetry events ingested, by event type",
		},
		[]string{"type"},
	)

	sessionsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "view_sessions_reaped_total",
			Help: "Sessions closed by the idle reaper",
		},
	)

	retentionRowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_rows_deleted_total",
			Help: "Rows removed by the retention sweeper, by category",
		},
		[]string{"category"},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordSessionOpened counts a session opened by the access gate
func RecordSessionOpened(unique bool) {
	viewSessionsOpened.WithLabelValues(strconv.FormatBool(unique)).Inc()
}

// RecordTelemetryEvent counts one ingested telemetry event
func RecordTelemetryEvent(eventType string) {
	telemetryEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordReapedSessions counts sessions closed by the idle reaper
func RecordReapedSessions(n int64) {
	sessionsReapedTotal.Add(float64(n))
}

// RecordRetentionDeleted counts rows removed by the retention sweeper
func RecordRetentionDeleted(category string, n int64) {
	retentionRowsDeleted.WithLabelValues(category).Add(float64(n))
}
