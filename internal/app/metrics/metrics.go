package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "task_api",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_api",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "task_api",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_api",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts.",
		},
		[]string{"outcome"},
	)

	tasksMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task_api",
			Subsystem: "tasks",
			Name:      "mutations_total",
			Help:      "Total number of task create/update/delete operations.",
		},
		[]string{"operation"},
	)

	startupPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "task_api",
			Subsystem: "startup",
			Name:      "phase_duration_seconds",
			Help:      "Duration of the startup phases (gate, migrate).",
		},
		[]string{"phase"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		authAttempts,
		tasksMutations,
		startupPhase,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight increments the in-flight request gauge.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight decrements the in-flight request gauge.
func DecInFlight() { httpInFlight.Dec() }

// ObserveRequest records one handled HTTP request.
func ObserveRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLogin counts a login attempt by outcome (success, invalid, disabled).
func RecordLogin(outcome string) {
	authAttempts.WithLabelValues(outcome).Inc()
}

// RecordTaskMutation counts a task write by operation (create, update, delete).
func RecordTaskMutation(operation string) {
	tasksMutations.WithLabelValues(operation).Inc()
}

// RecordStartupPhase records how long a startup phase took.
func RecordStartupPhase(phase string, duration time.Duration) {
	startupPhase.WithLabelValues(phase).Set(duration.Seconds())
}
