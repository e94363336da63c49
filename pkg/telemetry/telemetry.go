// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package telemetry sets up OpenTelemetry tracing for the audit log generator.
// Spans cover event handling and orchestrator lookups; the trace context of a
// lifecycle event travels in its message headers.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// InstrumentationName names the tracer used by every package of this module.
const InstrumentationName = "github.com/telekom/deploy-auditlog"

const (
	DefaultServiceName = "deploy-auditlog"
	shutdownTimeout    = 5 * time.Second
)

// Exporter names accepted in Options.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Tracer returns the module tracer from the global provider. Before Init runs
// the global provider is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Options configures tracing.
type Options struct {
	// Enabled installs an SDK provider. When false, spans are no-ops.
	Enabled bool

	// ServiceName is the service.name resource attribute.
	// Default: "deploy-auditlog"
	ServiceName    string
	ServiceVersion string

	// Exporter is otlp (default), stdout or none.
	Exporter string

	// Endpoint is the OTLP gRPC collector, e.g. "otel-collector:4317".
	Endpoint string
	Insecure bool

	// SamplingRate is the ratio of root traces kept. Values outside [0, 1]
	// are clamped to 1.
	SamplingRate float64

	Logger *zap.SugaredLogger
}

func (o Options) normalize() Options {
	if o.ServiceName == "" {
		o.ServiceName = DefaultServiceName
	}
	if o.Exporter == "" {
		o.Exporter = ExporterOTLP
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	if o.SamplingRate < 0 || o.SamplingRate > 1 {
		o.Logger.Warnw("Trace sampling rate out of range, sampling everything", "provided", o.SamplingRate)
		o.SamplingRate = 1
	}
	return o
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

// Init installs the global TracerProvider and the W3C trace context
// propagator. The returned ShutdownFunc must be called on exit; for a
// disabled configuration it does nothing.
func Init(ctx context.Context, opts Options) (trace.TracerProvider, ShutdownFunc, error) {
	if !opts.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}
	opts = opts.normalize()
	log := opts.Logger

	exporter, err := newExporter(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	// NewSchemaless avoids schema URL conflicts with resource.Default().
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.ServiceVersion),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("creating OTel resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SamplingRate))),
	}
	if exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(providerOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warnw("OpenTelemetry internal error", "error", err)
	}))

	log.Infow("Tracing initialized",
		"serviceName", opts.ServiceName,
		"exporter", opts.Exporter,
		"endpoint", opts.Endpoint,
		"samplingRate", opts.SamplingRate)

	return tp, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// newExporter returns nil for the none exporter.
func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case ExporterOTLP:
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP gRPC exporter: %w", err)
		}
		return exp, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q: supported values are otlp, stdout, none", opts.Exporter)
	}
}

// ExtractHeaders returns ctx carrying the remote span context found in
// message headers, if any.
func ExtractHeaders(ctx context.Context, headers map[string][]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(http.Header(headers)))
}

// InjectHeaders writes the span context of ctx into message headers.
func InjectHeaders(ctx context.Context, headers map[string][]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(headers)))
}
