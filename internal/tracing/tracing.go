// Package tracing wires OpenTelemetry spans around plan resolution and
// feature execution.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation name used when no tracer is injected.
const Name = "github.com/vk/featuregrid"

// Common attribute keys.
const (
	ModelKey       = "featuregrid.model.name"
	FeatureKey     = "featuregrid.feature.name"
	FeatureKindKey = "featuregrid.feature.kind"
	RunIDKey       = "featuregrid.run.id"
	OutputsKey     = "featuregrid.plan.outputs"
	OrderKey       = "featuregrid.plan.order"
	GroupsKey      = "featuregrid.engine.groups"
	RowsKey        = "featuregrid.dataset.rows"
)

// Tracer returns the global tracer for this module. Without a configured
// provider it is a no-op.
//
// nolint:ireturn // OpenTelemetry tracers are interfaces.
func Tracer() trace.Tracer {
	return otel.Tracer(Name)
}

// NewProvider configures an OTLP/HTTP exporter, installs the resulting
// provider globally and returns its shutdown function.
func NewProvider(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp.Shutdown, nil
}

// StartSpan starts a span with the given attributes.
//
// nolint:ireturn,spancheck // OpenTelemetry spans are interfaces.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError records err on the span and marks it failed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
