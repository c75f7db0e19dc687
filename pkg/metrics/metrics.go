package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered with the default registry through promauto and
// served by the API's /metrics endpoint.
var (
	// --- Build Metrics ---

	// BuildsTotal counts finished build runs by outcome.
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scope",
			Subsystem: "builds",
			Name:      "total",
			Help:      "Total number of build runs by outcome",
		},
		[]string{"outcome"},
	)

	// BuildDuration tracks how long a build terminal stayed open.
	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scope",
			Subsystem: "builds",
			Name:      "duration_seconds",
			Help:      "Duration of build runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~3.4m
		},
		[]string{"outcome"},
	)

	// BuildsRunning tracks builds waiting for their terminal to close.
	BuildsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scope",
			Subsystem: "builds",
			Name:      "running",
			Help:      "Number of build runs waiting for their terminal to close",
		},
	)

	// --- Terminal Metrics ---

	// TerminalsOpen tracks live terminal sessions.
	TerminalsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scope",
			Subsystem: "terminal",
			Name:      "sessions_open",
			Help:      "Number of terminal sessions whose shell is still running",
		},
	)

	// --- Artifact Metrics ---

	// ArtifactsLocated observes how many artifacts one lookup returned.
	ArtifactsLocated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scope",
			Subsystem: "artifacts",
			Name:      "located",
			Help:      "Number of artifacts returned per lookup",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// DirectoryListErrors counts candidate directories that could not be listed.
	DirectoryListErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scope",
			Subsystem: "artifacts",
			Name:      "list_errors_total",
			Help:      "Candidate build directories that could not be listed, by reason",
		},
		[]string{"reason"},
	)

	// --- Notification Metrics ---

	// NotificationsShown counts advisories displayed.
	NotificationsShown = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scope",
			Subsystem: "notifications",
			Name:      "shown_total",
			Help:      "Total number of notifications displayed",
		},
	)
)

// RecordBuild records metrics for a finished build.
func RecordBuild(outcome string, durationSeconds float64) {
	BuildsTotal.WithLabelValues(outcome).Inc()
	BuildDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordListError records a candidate directory that could not be listed.
func RecordListError(notExist bool) {
	reason := "io"
	if notExist {
		reason = "not_exist"
	}
	DirectoryListErrors.WithLabelValues(reason).Inc()
}
