// Package apm wraps OpenTelemetry tracing setup and span helpers.
package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)

	// StartDetached starts a span in caller's trace but returns a context
	// derived from base. Work that outlives the caller (a race channel, a
	// stream) keeps the trace without inheriting the caller's cancellation.
	StartDetached(base, caller context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)
}

type openTracer struct {
	name     string
	provider trace.TracerProvider
}

// NewTracer resolves a tracer from the global provider on every span, so
// tracers created before telemetry setup still export.
func NewTracer(name string) Tracer {
	return &openTracer{name: name}
}

// NewTracerFrom binds a tracer to a specific provider.
func NewTracerFrom(tp trace.TracerProvider, name string) Tracer {
	return &openTracer{name: name, provider: tp}
}

func (t *openTracer) tracer() trace.Tracer {
	if t.provider != nil {
		return t.provider.Tracer(t.name)
	}
	return otel.Tracer(t.name)
}

func (t *openTracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	ctx, span := t.tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, NewSpan(span)
}

func (t *openTracer) StartDetached(base, caller context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span) {
	spanCtx, span := t.tracer().Start(caller, name, trace.WithAttributes(attrs...))
	return trace.ContextWithSpanContext(base, trace.SpanContextFromContext(spanCtx)), NewSpan(span)
}
