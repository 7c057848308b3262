// Package metrics provides Prometheus metrics for fitbridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts pipeline invocations by operation and outcome.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitbridge",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline invocations",
		},
		[]string{"operation", "outcome"},
	)

	// UpstreamReads counts sample reader calls by metric kind and status.
	UpstreamReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitbridge",
			Name:      "upstream_reads_total",
			Help:      "Total number of sample reader calls",
		},
		[]string{"kind", "status"},
	)

	// MalformedSamples counts readings skipped during aggregation.
	MalformedSamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitbridge",
			Name:      "malformed_samples_total",
			Help:      "Total number of samples skipped as malformed",
		},
		[]string{"kind"},
	)

	// SyncRecords counts records submitted to the backend.
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitbridge",
			Name:      "sync_records_total",
			Help:      "Total number of health records submitted to the backend",
		},
		[]string{"status"},
	)

	// SyncDuration measures full sync runs.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fitbridge",
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RecordRun records the outcome of one pipeline operation.
func RecordRun(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	PipelineRuns.WithLabelValues(operation, outcome).Inc()
}

// RecordDegraded records an operation that succeeded with an empty substitution.
func RecordDegraded(operation string) {
	PipelineRuns.WithLabelValues(operation, "degraded").Inc()
}

// RecordRead records one reader call for a kind.
func RecordRead(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	UpstreamReads.WithLabelValues(kind, status).Inc()
}

// RecordMalformed records a skipped sample.
func RecordMalformed(kind string) {
	MalformedSamples.WithLabelValues(kind).Inc()
}

// RecordSync records a sync submission.
func RecordSync(sent, accepted int, seconds float64) {
	SyncRecords.WithLabelValues("sent").Add(float64(sent))
	SyncRecords.WithLabelValues("accepted").Add(float64(accepted))
	SyncDuration.Observe(seconds)
}
