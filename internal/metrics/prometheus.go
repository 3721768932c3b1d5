package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the console backend itself
var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "driftwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// Poll cycle metrics
	pollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_poll_cycles_total",
			Help: "Total number of telemetry poll cycles by outcome",
		},
		[]string{"outcome"},
	)

	pollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "driftwatch_poll_cycle_duration_seconds",
			Help:    "Telemetry poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	collaboratorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_collaborator_requests_total",
			Help: "Total number of requests to external collaborators",
		},
		[]string{"collaborator", "outcome"},
	)

	// Incident timeline metrics
	eventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_events_emitted_total",
			Help: "Total number of incident timeline events emitted",
		},
		[]string{"type"},
	)

	// WebSocket metrics
	websocketClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftwatch_websocket_clients_active",
			Help: "Number of connected WebSocket clients",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its duration
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordPollCycle records a completed poll cycle. Outcome is one of
// "committed", "superseded", "disconnected".
func RecordPollCycle(outcome string, duration time.Duration) {
	pollCyclesTotal.WithLabelValues(outcome).Inc()
	pollCycleDuration.Observe(duration.Seconds())
}

// RecordCollaboratorRequest records a call to an external collaborator
func RecordCollaboratorRequest(collaborator string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	collaboratorRequestsTotal.WithLabelValues(collaborator, outcome).Inc()
}

// RecordEventEmitted records an incident timeline event emission
func RecordEventEmitted(eventType string) {
	eventsEmittedTotal.WithLabelValues(eventType).Inc()
}

// SetWebSocketClients sets the active WebSocket client gauge
func SetWebSocketClients(count int) {
	websocketClientsActive.Set(float64(count))
}
