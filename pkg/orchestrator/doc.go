// Package orchestrator holds the read-only views of the deployment
// orchestrator (lifecycle events, deployments, topologies, node types) and the
// contracts through which the audit logger consumes them: an event source, a
// REST adapter for the stores and a NATS bridge for the live event bus.
package orchestrator
