/*
Package metrics provides Prometheus metrics collection and exposition for
Dialog.

The metrics package defines and registers every Dialog metric using the
Prometheus client library: catalog size, cell CAS contention, prolly tree
shape, artifact commit latency, query evaluation throughput, and remote
branch sync lag. Metrics are exposed via an HTTP endpoint for scraping by
a Prometheus server.

# Usage

Register the HTTP handler on a mux and update the package-level metric
variables from the component that owns the underlying state:

	mux.Handle("/metrics", metrics.Handler())

	metrics.CatalogBlobsTotal.Inc()
	metrics.CellCASAttemptsTotal.WithLabelValues("success").Inc()

	timer := metrics.NewTimer()
	err := tree.Integrate(ctx, changes)
	timer.ObserveDuration(metrics.TreeIntegrateDuration)

# Catalog metrics

  - dialog_catalog_blobs_total: blobs reachable from the catalog
  - dialog_catalog_bytes_total: total bytes reachable from the catalog

# Memory cell metrics

  - dialog_cell_cas_attempts_total{outcome}: CAS attempts, "success", "conflict" or "error"

# Prolly tree metrics

  - dialog_prolly_nodes_total{branch}: distinct nodes written per branch
  - dialog_prolly_depth{branch}: current root-to-leaf depth per branch
  - dialog_prolly_integrate_duration_seconds: changeset integration latency

# Artifact store metrics

  - dialog_artifact_commit_duration_seconds: commit latency
  - dialog_artifact_commit_retries_total: retries caused by edition mismatch

# Query kernel metrics

  - dialog_query_evaluations_total{outcome}: completed evaluations
  - dialog_query_evaluation_duration_seconds{outcome}: evaluation latency
  - dialog_query_answers_emitted_total: Answer bindings streamed out
  - dialog_query_rule_fixpoint_iterations{rule}: seminaive iteration count

# Remote mirroring metrics

  - dialog_remote_sync_lag_seconds{branch}: age of the last successful sync
  - dialog_remote_rpc_requests_total{method,status}: remote RPC call counts

# See also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
