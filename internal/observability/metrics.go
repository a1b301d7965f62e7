package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                 sync.Once
	httpRequestsTotal            *prometheus.CounterVec
	httpLatencySeconds           *prometheus.HistogramVec
	httpErrorsTotal              *prometheus.CounterVec
	notificationsCreatedTotal    *prometheus.CounterVec
	notificationsSuppressedTotal *prometheus.CounterVec
	statusTransitionsTotal       *prometheus.CounterVec
	sseClientsActive             prometheus.Gauge
	attendanceFeedClientsActive  prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for the API and the
// notification engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edulog_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edulog_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edulog_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		notificationsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edulog_notifications_created_total",
			Help: "Notifications stored after passing the dedup gate.",
		}, []string{"kind"})

		notificationsSuppressedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edulog_notifications_suppressed_total",
			Help: "Notification attempts suppressed by an existing dedup key.",
		}, []string{"kind"})

		statusTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edulog_status_transitions_total",
			Help: "Standing transitions detected per direction.",
		}, []string{"direction"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edulog_sse_clients_active",
			Help: "Currently connected notification stream clients.",
		})

		attendanceFeedClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "edulog_attendance_feed_clients_active",
			Help: "Currently connected live attendance feed clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			notificationsCreatedTotal,
			notificationsSuppressedTotal,
			statusTransitionsTotal,
			sseClientsActive,
			attendanceFeedClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// NotificationsCreated exposes the counter for stored notifications.
func NotificationsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsCreatedTotal
}

// NotificationsSuppressed exposes the counter for deduplicated attempts.
func NotificationsSuppressed() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsSuppressedTotal
}

// StatusTransitions exposes the counter for standing changes.
func StatusTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return statusTransitionsTotal
}

// SSEClientsActive exposes the gauge of connected stream clients.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// AttendanceFeedClientsActive exposes the gauge of connected feed clients.
func AttendanceFeedClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return attendanceFeedClientsActive
}
