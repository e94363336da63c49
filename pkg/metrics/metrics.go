package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event intake
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_events_received_total",
		Help: "Total number of lifecycle events dispatched to listeners, by event variant",
	}, []string{"variant"})
	EventsUndecodable = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_events_undecodable_total",
		Help: "Total number of bus messages that could not be decoded into a lifecycle event",
	}, []string{"reason"})
	HandlerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deployaudit_handler_panics_total",
		Help: "Total number of panics recovered in the audit event handler",
	})

	// Orchestrator lookups
	OrchestratorRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deployaudit_orchestrator_request_duration_seconds",
		Help:    "Latency of orchestrator REST requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	OrchestratorRequestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_orchestrator_request_errors_total",
		Help: "Total number of failed orchestrator REST requests",
	}, []string{"path", "reason"})
	LookupMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_lookup_misses_total",
		Help: "Total number of events dropped because a deployment, topology or type could not be resolved",
	}, []string{"store"})

	// Audit records
	RecordsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_records_published_total",
		Help: "Total number of audit records handed to the sinks, by event kind",
	}, []string{"event"})
	RecordsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_records_dropped_total",
		Help: "Total number of audit records dropped, by reason",
	}, []string{"reason"})

	// Sinks
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_sink_errors_total",
		Help: "Total number of audit sink write errors, by sink and error type",
	}, []string{"sink", "error_type"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deployaudit_sink_write_duration_seconds",
		Help:    "Latency of audit sink writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
	AuditSinkConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deployaudit_sink_connected",
		Help: "Whether the audit sink is currently able to deliver (1) or not (0)",
	}, []string{"sink"})
	AuditKafkaMessagesInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deployaudit_kafka_messages_in_flight",
		Help: "Number of audit records currently being written to Kafka",
	}, []string{"sink"})
	AuditSinkSetups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_sink_setups_total",
		Help: "Total number of audit subsystem start attempts, by result",
	}, []string{"result"})
	AuditSinkBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deployaudit_sink_breaker_state",
		Help: "Circuit breaker state of an audit sink (0 closed, 1 open, 2 half-open)",
	}, []string{"sink"})
	AuditSinkBreakerRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deployaudit_sink_breaker_rejections_total",
		Help: "Total number of audit records rejected by an open circuit breaker",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(EventsReceived)
	prometheus.MustRegister(EventsUndecodable)
	prometheus.MustRegister(HandlerPanics)
	prometheus.MustRegister(OrchestratorRequestLatency)
	prometheus.MustRegister(OrchestratorRequestErrors)
	prometheus.MustRegister(LookupMisses)
	prometheus.MustRegister(RecordsPublished)
	prometheus.MustRegister(RecordsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkLatency)
	prometheus.MustRegister(AuditSinkConnected)
	prometheus.MustRegister(AuditKafkaMessagesInFlight)
	prometheus.MustRegister(AuditSinkSetups)
	prometheus.MustRegister(AuditSinkBreakerState)
	prometheus.MustRegister(AuditSinkBreakerRejections)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
