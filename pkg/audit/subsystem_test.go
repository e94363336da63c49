// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
)

func enabledConfig() Config {
	return Config{
		Kafka:    KafkaSinkConfig{Brokers: []string{"localhost:9092"}, Topic: "deploy-audit"},
		Metadata: Metadata{Site: "site1"},
		Hostname: "host1",
		Location: time.UTC,
	}
}

func TestConfig_Enabled(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   bool
	}{
		{"complete", func(*Config) {}, true},
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }, false},
		{"no site", func(c *Config) { c.Metadata.Site = "" }, false},
		{"no topic", func(c *Config) { c.Kafka.Topic = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, cfg.Enabled())
		})
	}
}

func TestStart_DisabledWithoutConfiguration(t *testing.T) {
	dispatcher := orchestrator.NewDispatcher(zaptest.NewLogger(t))
	cfg := enabledConfig()
	cfg.Metadata.Site = ""

	before := testutil.ToFloat64(metrics.AuditSinkSetups.WithLabelValues("disabled"))
	h := Start(cfg, Dependencies{Events: dispatcher}, zaptest.NewLogger(t))

	assert.False(t, h.Enabled())
	assert.Nil(t, h.Listener())
	assert.Zero(t, dispatcher.Len(), "disabled subsystem must not subscribe")
	assert.NoError(t, h.HealthCheck())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditSinkSetups.WithLabelValues("disabled")))

	assert.NotPanics(t, func() { Stop(h) })
}

func TestStart_DisabledOnInvalidKafkaConfig(t *testing.T) {
	dispatcher := orchestrator.NewDispatcher(zaptest.NewLogger(t))
	cfg := enabledConfig()
	cfg.Kafka.SASL = &KafkaSASLConfig{Mechanism: "OAUTH"}

	h := Start(cfg, Dependencies{Events: dispatcher}, zaptest.NewLogger(t))

	assert.False(t, h.Enabled())
	assert.Zero(t, dispatcher.Len())
}

func TestStop_NilHandle(t *testing.T) {
	var h *Handle
	assert.NotPanics(t, func() { Stop(h) })
	assert.False(t, h.Enabled())
	assert.NoError(t, h.HealthCheck())
}

func TestStart_PublishesDispatchedEvents(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dispatcher := orchestrator.NewDispatcher(logger)
	f := withApp(newFakeOrchestrator())
	sink := &recordingSink{}

	h := Start(enabledConfig(), Dependencies{
		Stores: f.stores(),
		Events: dispatcher,
		Sink:   sink,
	}, logger)
	require.True(t, h.Enabled())
	assert.Equal(t, 1, dispatcher.Len())

	ctx := context.Background()
	dispatcher.Dispatch(ctx, &orchestrator.WorkflowStartedEvent{EventMeta: meta("d1"), WorkflowName: strPtr("install")})
	dispatcher.Dispatch(ctx, &orchestrator.DeploymentStatusEvent{EventMeta: meta("d1"), Status: orchestrator.StatusDeployed})
	dispatcher.Dispatch(ctx, &orchestrator.DeploymentStatusEvent{EventMeta: meta("unknown"), Status: orchestrator.StatusDeployed})

	records := sink.records(t)
	require.Len(t, records, 2)
	assert.Equal(t, KindDeployBegin, records[0].Event)
	assert.Equal(t, KindDeploySuccess, records[1].Event)
	assert.Equal(t, "host1", records[1].Hostname)
	assert.Equal(t, "site1", records[1].Site)

	Stop(h)
	assert.Zero(t, dispatcher.Len())
	assert.True(t, sink.closed)
	assert.False(t, h.Enabled())

	dispatcher.Dispatch(ctx, &orchestrator.DeploymentStatusEvent{EventMeta: meta("d1"), Status: orchestrator.StatusDeployed})
	assert.Len(t, sink.records(t), 2, "no records after stop")
}

type panickingStore struct{}

func (panickingStore) Deployment(context.Context, string) (*orchestrator.Deployment, error) {
	panic("store exploded")
}

func TestListener_RecoversPanics(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dispatcher := orchestrator.NewDispatcher(logger)
	f := newFakeOrchestrator()
	stores := f.stores()
	stores.Deployments = panickingStore{}

	h := Start(enabledConfig(), Dependencies{Stores: stores, Events: dispatcher, Sink: &recordingSink{}}, logger)
	require.True(t, h.Enabled())
	defer Stop(h)

	before := testutil.ToFloat64(metrics.HandlerPanics)
	assert.NotPanics(t, func() {
		dispatcher.Dispatch(context.Background(), &orchestrator.DeploymentStatusEvent{EventMeta: meta("d1"), Status: orchestrator.StatusDeployed})
	})
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HandlerPanics))
}

func TestListener_CanHandle(t *testing.T) {
	l := &listener{}
	assert.True(t, l.CanHandle(&orchestrator.DeploymentStatusEvent{}))
	assert.True(t, l.CanHandle(&orchestrator.WorkflowStartedEvent{}))
	assert.True(t, l.CanHandle(&orchestrator.WorkflowStepStartedEvent{}))
	assert.False(t, l.CanHandle(nil))
}

func TestStart_WrapsSinkWithCircuitBreaker(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dispatcher := orchestrator.NewDispatcher(logger)
	cfg := enabledConfig()
	cfg.CircuitBreaker = CircuitBreakerConfig{FailureThreshold: 2}

	h := Start(cfg, Dependencies{Stores: newFakeOrchestrator().stores(), Events: dispatcher, Sink: &recordingSink{}}, logger)
	require.True(t, h.Enabled())
	defer Stop(h)

	multi, ok := h.publisher.sink.(*MultiSink)
	require.True(t, ok)
	_, ok = multi.Sinks()[0].(*CircuitBreakerSink)
	assert.True(t, ok)
	_, ok = multi.Sinks()[1].(*LogSink)
	assert.True(t, ok)
}

func TestListener_TracesEvents(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	logger := zaptest.NewLogger(t)
	dispatcher := orchestrator.NewDispatcher(logger)
	h := Start(enabledConfig(), Dependencies{Stores: withApp(newFakeOrchestrator()).stores(), Events: dispatcher, Sink: &recordingSink{}}, logger)
	require.True(t, h.Enabled())
	defer Stop(h)

	dispatcher.Dispatch(context.Background(), &orchestrator.DeploymentStatusEvent{EventMeta: meta("d1"), Status: orchestrator.StatusUndeployed})

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "audit.event", ended[0].Name())

	attrs := map[string]interface{}{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, orchestrator.TypeDeploymentStatus, attrs["event.variant"])
	assert.Equal(t, "d1", attrs["deployment.id"])
	assert.Equal(t, int64(1), attrs["audit.records"])
}
