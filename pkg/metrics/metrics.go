package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	CatalogBlobsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialog_catalog_blobs_total",
			Help: "Number of blobs reachable from the blob catalog",
		},
	)

	CatalogBytesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dialog_catalog_bytes_total",
			Help: "Total bytes reachable from the blob catalog",
		},
	)

	// Memory cell metrics
	CellCASAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_cell_cas_attempts_total",
			Help: "Compare-and-swap attempts against memory cells by outcome",
		},
		[]string{"outcome"},
	)

	// Prolly tree metrics
	TreeNodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialog_prolly_nodes_total",
			Help: "Distinct prolly tree nodes written, by branch",
		},
		[]string{"branch"},
	)

	TreeDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialog_prolly_depth",
			Help: "Current root-to-leaf depth of the prolly tree, by branch",
		},
		[]string{"branch"},
	)

	TreeIntegrateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dialog_prolly_integrate_duration_seconds",
			Help:    "Time taken to integrate a changeset into a tree",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Artifact store metrics
	ArtifactCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dialog_artifact_commit_duration_seconds",
			Help:    "Time taken to commit a changeset to an artifact store",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArtifactCommitRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dialog_artifact_commit_retries_total",
			Help: "Total number of commit retries caused by an edition mismatch",
		},
	)

	// Query kernel metrics
	QueryEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_query_evaluations_total",
			Help: "Completed query evaluations by outcome",
		},
		[]string{"outcome"},
	)

	QueryEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dialog_query_evaluation_duration_seconds",
			Help:    "Query evaluation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	QueryAnswersEmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dialog_query_answers_emitted_total",
			Help: "Total number of Answer bindings streamed out of the query kernel",
		},
	)

	RuleFixpointIterations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialog_query_rule_fixpoint_iterations",
			Help: "Seminaive iterations taken by the most recent evaluation of a rule",
		},
		[]string{"rule"},
	)

	// Remote mirroring metrics
	RemoteSyncLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dialog_remote_sync_lag_seconds",
			Help: "Seconds since the last successful sync of a remote branch",
		},
		[]string{"branch"},
	)

	RemoteRPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialog_remote_rpc_requests_total",
			Help: "Total remote storage RPCs by method and status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(CatalogBlobsTotal)
	prometheus.MustRegister(CatalogBytesTotal)
	prometheus.MustRegister(CellCASAttemptsTotal)
	prometheus.MustRegister(TreeNodesTotal)
	prometheus.MustRegister(TreeDepth)
	prometheus.MustRegister(TreeIntegrateDuration)
	prometheus.MustRegister(ArtifactCommitDuration)
	prometheus.MustRegister(ArtifactCommitRetriesTotal)
	prometheus.MustRegister(QueryEvaluationsTotal)
	prometheus.MustRegister(QueryEvaluationDuration)
	prometheus.MustRegister(QueryAnswersEmittedTotal)
	prometheus.MustRegister(RuleFixpointIterations)
	prometheus.MustRegister(RemoteSyncLagSeconds)
	prometheus.MustRegister(RemoteRPCRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
