// Package metrics provides centralized Prometheus metrics registry for the CallHub client.
// All metrics are defined in their respective packages (remote, ratelimit, batch, fields,
// pagination) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the CallHub client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - callhub_rate_limit_grants_total{class} (Counter): Grants issued by operation class
//   - callhub_rate_limit_wait_seconds{class} (Histogram): Time spent waiting for a grant
//   - callhub_rate_limit_exhausted_total{class} (Counter): Non-blocking acquires rejected
//
// Request Metrics (pkg/remote):
//   - callhub_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - callhub_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - callhub_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Batch Metrics (pkg/batch):
//   - callhub_batch_size (Histogram): Descriptors per executed batch
//   - callhub_batch_slots_total{outcome} (Counter): Per-slot outcomes (success, failure)
//   - callhub_batch_in_flight (Gauge): Currently dispatched batch slots
//
// Field Schema Metrics (pkg/fields):
//   - callhub_field_schema_fetches_total (Counter): Schema fetches from the remote
//   - callhub_field_count (Gauge): Fields in the current schema snapshot
//
// Pagination Metrics (pkg/pagination):
//   - callhub_pages_fetched_total (Counter): Pages fetched across all iterators
//   - callhub_page_records_total (Counter): Records decoded from fetched pages
//
// Example Prometheus Queries:
//
//   # Rate limit wait pressure per class
//   histogram_quantile(0.95, rate(callhub_rate_limit_wait_seconds_bucket[5m]))
//
//   # Batch failure ratio
//   rate(callhub_batch_slots_total{outcome="failure"}[5m]) /
//   rate(callhub_batch_slots_total[5m])
//
//   # Request Error Rate
//   rate(callhub_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(callhub_request_duration_seconds_bucket[5m]))
