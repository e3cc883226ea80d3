// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Total number of conversation turns by exit path",
		},
		[]string{"exit"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	ProviderFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_provider_fetch_failures_total",
			Help: "Provider fetches that failed and were skipped",
		},
		[]string{"domain"},
	)

	NormalizationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_normalization_failures_total",
			Help: "Provider documents rejected during normalization",
		},
		[]string{"domain"},
	)

	TimeRangeResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_time_range_resolutions_total",
			Help: "Time range resolutions by outcome",
		},
		[]string{"outcome"},
	)

	ClarificationsAsked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_clarifications_total",
			Help: "Clarification questions asked by reason",
		},
		[]string{"reason"},
	)

	SessionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_session_conflicts_total",
			Help: "Optimistic session updates retried after a concurrent write",
		},
	)

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

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
)
