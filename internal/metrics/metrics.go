package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sweep metrics
	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_sweeps_total",
			Help: "Total number of sweeps by result",
		},
		[]string{"result"},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maintenance_sweep_duration_seconds",
			Help:    "Sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_tasks_processed_total",
			Help: "Total number of tasks processed by outcome",
		},
		[]string{"outcome"},
	)

	// Engine decisions
	RemindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maintenance_reminders_total",
			Help: "Total number of reminder markers set",
		},
	)

	EscalationsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_escalations_total",
			Help: "Total number of escalation dispatches by level",
		},
		[]string{"level"},
	)

	// Channel metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maintenance_notifications_total",
			Help: "Total number of channel sends by channel and result",
		},
		[]string{"channel", "result"},
	)
)

func init() {
	prometheus.MustRegister(SweepsTotal)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(TasksProcessed)
	prometheus.MustRegister(RemindersSent)
	prometheus.MustRegister(EscalationsFired)
	prometheus.MustRegister(NotificationsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
