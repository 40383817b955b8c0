package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Labels.
	LabelCheck   = "check"
	LabelOutcome = "outcome"
	LabelTask    = "task"
)

var (
	CheckRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_check_runs_total",
			Help: "Number of check invocations by outcome",
		},
		[]string{LabelCheck, LabelOutcome},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestwatch_task_duration_seconds",
			Help:    "Duration of scheduled task invocations",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{LabelTask},
	)

	TaskPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestwatch_task_panics_total",
			Help: "Number of recovered panics in scheduled tasks",
		},
		[]string{LabelTask},
	)

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestwatch_notifications_sent_total",
		Help: "Notifications delivered",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestwatch_notifications_failed_total",
		Help: "Notifications whose delivery failed",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestwatch_notifications_dropped_total",
		Help: "Notifications dropped because the delivery queue was full",
	})

	SourceCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestwatch_source_cursor",
		Help: "Last seen source id",
	})

	HoursSinceActivity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestwatch_hours_since_activity",
		Help: "Whole hours since new articles were last observed",
	})

	FailuresToday = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestwatch_failures_today",
		Help: "Failed articles counted today, oversized links excluded",
	})

	FailureLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestwatch_failure_level_reported",
		Help: "Highest failure level reported today",
	})

	PortAlarmsToday = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestwatch_port_alarms_today",
		Help: "Port alarms sent today",
	})

	PortUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestwatch_port_up",
			Help: "1 if the last probe of the port connected",
		},
		[]string{"port"},
	)
)
