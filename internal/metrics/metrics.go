package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "turfbook",
			Name:      "bookings_created_total",
			Help:      "Bookings created successfully.",
		},
	)

	webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfbook",
			Name:      "webhooks_total",
			Help:      "Gateway webhook deliveries by outcome.",
		},
		[]string{"gateway", "result"},
	)

	paymentsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfbook",
			Name:      "payments_applied_total",
			Help:      "Payments credited to bookings.",
		},
		[]string{"gateway"},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "turfbook",
			Name:      "reminders_sent_total",
			Help:      "Reminder dispatch attempts by outcome.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, webhooks, paymentsApplied, remindersSent)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBookingCreated counts a successful booking creation.
func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncWebhook counts a webhook delivery; result is applied, ignored or rejected.
func IncWebhook(gateway, result string) {
	webhooks.WithLabelValues(gateway, result).Inc()
}

// IncPaymentApplied counts a payment credited to a booking.
func IncPaymentApplied(gateway string) {
	paymentsApplied.WithLabelValues(gateway).Inc()
}

// IncReminder counts a reminder dispatch attempt; result is sent or failed.
func IncReminder(result string) {
	remindersSent.WithLabelValues(result).Inc()
}
