package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all karajan Prometheus metrics.
type Metrics struct {
	UpdatesTotal   *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
	GuestErrors    *prometheus.CounterVec
	MessagesSent   *prometheus.CounterVec
	SendErrors     *prometheus.CounterVec
	PollErrors     *prometheus.CounterVec
	DeadLetters    *prometheus.CounterVec
}

// NewMetrics creates and registers all karajan metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karajan_updates_total",
			Help: "Total updates processed.",
		}, []string{"bot", "status"}),

		UpdateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "karajan_update_duration_seconds",
			Help:    "Time spent processing one update.",
			Buckets: prometheus.DefBuckets,
		}, []string{"bot"}),

		GuestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karajan_guest_errors_total",
			Help: "Guest invocation failures by error type.",
		}, []string{"bot", "error_type"}),

		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karajan_messages_sent_total",
			Help: "Messages delivered through the Bot API.",
		}, []string{"bot"}),

		SendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karajan_send_errors_total",
			Help: "sendMessage failures.",
		}, []string{"bot"}),

		PollErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karajan_poll_errors_total",
			Help: "getUpdates failures.",
		}, []string{"bot"}),

		DeadLetters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "karajan_dead_letters_total",
			Help: "Updates recorded as dead letters.",
		}, []string{"bot"}),
	}
}
