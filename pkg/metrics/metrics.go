package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling metrics
	AppointmentsBooked      prometheus.Counter
	AppointmentsRescheduled prometheus.Counter
	AppointmentsCancelled   prometheus.Counter
	AppointmentsCompleted   prometheus.Counter
	SchedulingConflicts     prometheus.Counter
	ConcurrencyConflicts    prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxEventsProcessed    prometheus.Counter
	OutboxEventsFailed       prometheus.Counter
	OutboxEventsDeadLettered prometheus.Counter
	OutboxRetries            *prometheus.CounterVec
	OutboxProcessingLatency  prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics registered on reg. Tests
// pass a fresh registry; the binaries share one with the /metrics
// handler.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AppointmentsBooked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_booked_total",
			Help:      "Total number of appointments booked",
		}),
		AppointmentsRescheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_rescheduled_total",
			Help:      "Total number of appointments rescheduled",
		}),
		AppointmentsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_cancelled_total",
			Help:      "Total number of appointments cancelled",
		}),
		AppointmentsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_completed_total",
			Help:      "Total number of appointments completed",
		}),
		SchedulingConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduling_conflicts_total",
			Help:      "Total number of bookings rejected because the doctor's slot was taken",
		}),
		ConcurrencyConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrency_conflicts_total",
			Help:      "Total number of writes rejected by the optimistic version check",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events whose publication failed",
		}),
		OutboxEventsDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_dead_lettered_total",
			Help:      "Total number of outbox events moved to the dead-letter table",
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent dispatching a batch of outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
