// Package metrics defines Prometheus metrics for the deployment audit logger,
// covering received lifecycle events, orchestrator lookups, produced and
// dropped audit records, and the health of the audit sinks.
package metrics
