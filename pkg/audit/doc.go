// Package audit turns orchestrator lifecycle events into deployment audit
// records and publishes them to Kafka. The Classifier decides which events
// produce records, the topology resolver gives modules their identity, and
// the Publisher hands serialized records to the configured sinks.
package audit
