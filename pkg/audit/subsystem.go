// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
	"github.com/telekom/deploy-auditlog/pkg/telemetry"
	"github.com/telekom/deploy-auditlog/pkg/topology"
)

// Config is the static configuration snapshot of the audit subsystem.
type Config struct {
	Kafka          KafkaSinkConfig
	CircuitBreaker CircuitBreakerConfig
	Metadata       Metadata
	Classifier     ClassifierConfig
	Topology       topology.Config

	// Hostname overrides the resolved host name.
	Hostname string

	// Location is the time zone of record timestamps. Nil means local time.
	Location *time.Location
}

// Enabled reports whether bootstrap servers, site and topic are all set.
func (c Config) Enabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Metadata.Site != "" && c.Kafka.Topic != ""
}

// Dependencies are the collaborators handed to Start.
type Dependencies struct {
	Stores

	// Events is the event bus the subsystem subscribes to.
	Events orchestrator.EventSource

	// Sink replaces the Kafka sink when set.
	Sink Sink
}

// Handle is a running audit subsystem. The zero value and nil are disabled.
type Handle struct {
	events    orchestrator.EventSource
	listener  *listener
	publisher *Publisher
	kafka     *KafkaSink
	logger    *zap.Logger
}

// Start wires the classifier to the event source. It never fails: missing
// configuration or an unusable sink yields a disabled handle.
func Start(cfg Config, deps Dependencies, logger *zap.Logger) *Handle {
	log := logger.Named("auditlog")
	h := &Handle{logger: log}

	if !cfg.Enabled() {
		metrics.AuditSinkSetups.WithLabelValues("disabled").Inc()
		log.Error("Kafka audit log is not configured",
			zap.Bool("bootstrap_servers", len(cfg.Kafka.Brokers) > 0),
			zap.Bool("site", cfg.Metadata.Site != ""),
			zap.Bool("topic", cfg.Kafka.Topic != ""))
		return h
	}
	if deps.Events == nil {
		metrics.AuditSinkSetups.WithLabelValues("error").Inc()
		log.Error("no event source, audit log disabled")
		return h
	}

	sink := deps.Sink
	if sink == nil {
		kafkaSink, err := NewKafkaSink(cfg.Kafka, logger)
		if err != nil {
			metrics.AuditSinkSetups.WithLabelValues("error").Inc()
			log.Error("failed to create Kafka sink, audit log disabled", zap.Error(err))
			return h
		}
		h.kafka = kafkaSink
		sink = kafkaSink
	}
	if cfg.CircuitBreaker.FailureThreshold > 0 {
		sink = NewCircuitBreakerSink(sink, cfg.CircuitBreaker, logger)
	}
	sink = NewMultiSink([]Sink{sink, NewLogSink(cfg.Kafka.Topic, logger)}, log)

	hostname := cfg.Hostname
	if hostname == "" {
		hostname = ResolveHostname()
	}
	assembler := NewAssembler(cfg.Metadata, hostname, cfg.Location)
	resolver := topology.NewResolver(cfg.Topology, logger)

	h.events = deps.Events
	h.publisher = NewPublisher(sink, logger)
	h.listener = &listener{
		classifier: NewClassifier(cfg.Classifier, deps.Stores, resolver, assembler, logger),
		publisher:  h.publisher,
		logger:     log,
	}
	h.events.Subscribe(h.listener)

	metrics.AuditSinkSetups.WithLabelValues("success").Inc()
	log.Info("Kafka audit log registered",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("site", cfg.Metadata.Site),
		zap.String("hostname", hostname),
		zap.String("module_tag", cfg.Classifier.ModuleTagName))
	return h
}

// Stop unsubscribes and closes the sinks. It is safe on nil and disabled handles.
func Stop(h *Handle) {
	if !h.Enabled() {
		return
	}
	h.events.Unsubscribe(h.listener)
	if err := h.publisher.Close(); err != nil {
		h.logger.Warn("failed to close audit sinks", zap.Error(err))
	}
	h.listener = nil
	h.logger.Info("Kafka audit log unregistered")
}

// Enabled reports whether the handle is subscribed.
func (h *Handle) Enabled() bool {
	return h != nil && h.listener != nil
}

// Listener returns the subscribed listener, or nil when disabled.
func (h *Handle) Listener() orchestrator.Listener {
	if !h.Enabled() {
		return nil
	}
	return h.listener
}

// HealthCheck reports the Kafka sink's health. Disabled handles are healthy.
func (h *Handle) HealthCheck() error {
	if !h.Enabled() || h.kafka == nil {
		return nil
	}
	return h.kafka.HealthCheck()
}

type listener struct {
	classifier *Classifier
	publisher  *Publisher
	logger     *zap.Logger
}

func (l *listener) CanHandle(event orchestrator.Event) bool {
	switch event.(type) {
	case *orchestrator.DeploymentStatusEvent,
		*orchestrator.WorkflowStartedEvent,
		*orchestrator.WorkflowStepStartedEvent:
		return true
	default:
		return false
	}
}

func (l *listener) EventHappened(ctx context.Context, event orchestrator.Event) {
	variant := orchestrator.VariantName(event)
	ctx, span := telemetry.Tracer().Start(ctx, "audit.event")
	span.SetAttributes(attribute.String("event.variant", variant))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			span.SetStatus(codes.Error, "panic")
			l.logger.Error("recovered panic while handling event",
				zap.String("variant", variant),
				zap.Any("panic", r))
		}
	}()

	span.SetAttributes(attribute.String("deployment.id", orchestrator.MetaOf(event).DeploymentID))
	records := l.classifier.Classify(ctx, event)
	span.SetAttributes(attribute.Int("audit.records", len(records)))
	l.publisher.PublishAll(ctx, records)
}
