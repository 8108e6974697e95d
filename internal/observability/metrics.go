package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	consultationsBookedTotal    prometheus.Counter
	slotConflictsTotal          prometheus.Counter
	gateDenialsTotal            *prometheus.CounterVec
	notificationsPublishedTotal *prometheus.CounterVec
	sseClientsActive            prometheus.Gauge
	chatClientsActive           prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		consultationsBookedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consultations_booked_total",
			Help: "Total number of consultations successfully booked.",
		})

		slotConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slot_conflicts_total",
			Help: "Total number of booking attempts rejected because the slot was taken.",
		})

		gateDenialsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "message_gate_denials_total",
			Help: "Total number of message sends denied by the booking-window gate.",
		}, []string{"reason"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total number of notifications published.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sse_clients_active",
			Help: "Number of currently connected SSE notification clients.",
		})

		chatClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_clients_active",
			Help: "Number of currently connected chat websocket clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			consultationsBookedTotal, slotConflictsTotal, gateDenialsTotal,
			notificationsPublishedTotal, sseClientsActive, chatClientsActive,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ConsultationsBooked exposes the booking success counter.
func ConsultationsBooked() prometheus.Counter {
	RegisterMetrics()
	return consultationsBookedTotal
}

// SlotConflicts exposes the slot-taken conflict counter.
func SlotConflicts() prometheus.Counter {
	RegisterMetrics()
	return slotConflictsTotal
}

// GateDenials exposes the message-gate denial counter.
func GateDenials() *prometheus.CounterVec {
	RegisterMetrics()
	return gateDenialsTotal
}

// NotificationsPublished exposes the notification publish counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// SSEClientsActive exposes the connected SSE client gauge.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// ChatClientsActive exposes the connected chat websocket gauge.
func ChatClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatClientsActive
}
