// Package metrics provides the centralized Prometheus metrics registry
// for the connection sweeper. All metrics are defined in their respective
// packages via promauto to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the sweeper.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Transport Metrics (pkg/transport):
//   - sweeper_api_requests_total{path, status} (Counter): API requests by path and HTTP status
//   - sweeper_api_request_duration_seconds{path} (Histogram): Request duration by path
//   - sweeper_api_errors_total{class} (Counter): Errors by class (rate_limited, timeout, api, network)
//
// Discovery Metrics (pkg/discovery):
//   - sweeper_discovery_probes_total{endpoint, outcome} (Counter): Candidate probes by outcome
//   - sweeper_memo_failures_total (Counter): Failures of the memoized endpoint after commitment
//
// Removal Metrics (pkg/removal):
//   - sweeper_removal_attempts_total{strategy, outcome} (Counter): Strategy attempts by outcome
//
// Scheduler Metrics (pkg/scheduler):
//   - sweeper_bulk_items_total{outcome} (Counter): Bulk items by outcome (removed, failed, rate_limited)
//   - sweeper_bulk_runs_total{state} (Counter): Bulk runs by terminal state (done, cancelled)
//
// Throttle Metrics (pkg/throttle):
//   - sweeper_throttle_cooldowns_total (Counter): Rate-limit cooldowns recorded
//   - sweeper_throttle_waits_total (Counter): Operations that waited out an active cooldown
//
// Roster Metrics (pkg/roster):
//   - sweeper_roster_cache_hits_total (Counter): Roster snapshot cache hits
//   - sweeper_roster_cache_misses_total (Counter): Roster snapshot cache misses
//
// Example Prometheus Queries:
//
//   # Rate-limit pressure
//   rate(sweeper_api_errors_total{class="rate_limited"}[5m])
//
//   # Removal success rate
//   sum(rate(sweeper_removal_attempts_total{outcome="success"}[5m])) /
//   sum(rate(sweeper_removal_attempts_total[5m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(sweeper_api_request_duration_seconds_bucket[5m]))
//
//   # Snapshot hit rate
//   rate(sweeper_roster_cache_hits_total[5m]) /
//   (rate(sweeper_roster_cache_hits_total[5m]) + rate(sweeper_roster_cache_misses_total[5m]))
