// Package metrics exposes Prometheus collectors for dispatch runs, delivery
// attempts, circuit breakers, the outcome queue and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatch
	DispatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_dispatch_runs_total",
			Help: "Campaign dispatch runs by result",
		},
		[]string{"result"}, // sent, aborted, not_recorded, rejected
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_dispatch_duration_seconds",
			Help:    "Wall time of a campaign dispatch run",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_delivery_attempts_total",
			Help: "Delivery attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_delivery_duration_seconds",
			Help:    "Duration of a single delivery attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crm_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Outcome queue
	QueueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_queue_messages_total",
			Help: "Outcome queue messages by topic and result",
		},
		[]string{"topic", "result"}, // published, publish_failed, handled, handler_failed, dropped
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120},
		},
		[]string{"method", "route"},
	)
)

func RecordDelivery(channel string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	DeliveryAttempts.WithLabelValues(channel, result).Inc()
	DeliveryDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func RecordDispatch(result string, d time.Duration) {
	DispatchRuns.WithLabelValues(result).Inc()
	DispatchDuration.Observe(d.Seconds())
}

func RecordQueue(topic, result string) {
	QueueMessages.WithLabelValues(topic, result).Inc()
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
