package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ChatAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_analyses_total",
			Help: "Chat messages analyzed, by scoring path (ai, heuristic, cache)",
		},
		[]string{"source"},
	)

	SuggestionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestions_generated_total",
			Help: "Operator suggestions generated, by type and path",
		},
		[]string{"suggestion_type", "source"},
	)

	ViewerConversionScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "viewer_conversion_score",
			Help:    "Distribution of computed viewer conversion scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	NotificationsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_scheduled_total",
			Help: "Notification sends created by campaign expansion",
		},
		[]string{"channel"},
	)

	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Delivery attempts by channel and outcome (sent, retry, failed)",
		},
		[]string{"channel", "outcome"},
	)

	Conversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversions_total",
			Help: "Payment conversions by resulting status",
		},
		[]string{"status"},
	)

	ConversionRevenue = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversion_revenue_minor_units_total",
			Help: "Completed conversion revenue in minor currency units",
		},
		[]string{"currency"},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_effect_failures_total",
			Help: "Best-effort side effects that failed and were swallowed",
		},
		[]string{"step"},
	)
)
