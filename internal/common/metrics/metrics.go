// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_dispatched_total",
			Help: "Total number of tickets moved from waiting to serving",
		},
		[]string{"org_id"},
	)

	DispatchConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_conflicts_total",
			Help: "Total number of lost call-next compare-and-swap races",
		},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of reminder notifications delivered, by escalation level",
		},
		[]string{"level"},
	)

	RemindersMissed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_missed_total",
			Help: "Total number of reminder windows that elapsed without a successful send",
		},
		[]string{"level"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total number of failed notification deliveries, by kind",
		},
		[]string{"kind"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "reminder_sweep_duration_seconds",
			Help: "Duration of a full reminder sweep in seconds",
		},
	)

	SweepTickets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_sweep_tickets",
			Help: "Number of scheduled waiting tickets examined by the last sweep",
		},
	)
)
