package apm

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders("x-team=abc, dataset = race ,broken,=nokey")
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	if got["x-team"] != "abc" || got["dataset"] != "race" {
		t.Errorf("got %v", got)
	}
}

func TestNoopTracerSpan(t *testing.T) {
	tracer := NewTracer("test")
	_, span := tracer.Start(context.Background(), "race.submit")
	defer span.End()

	span.NoticeError(errors.New("ignored by noop"))
	if span.TraceID() != "" {
		t.Errorf("noop span should have no trace id, got %q", span.TraceID())
	}
}

func TestStartDetached(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())
	tracer := NewTracerFrom(tp, "test")

	callerCtx, parent := tracer.Start(context.Background(), "submit")
	callerCtx, cancelCaller := context.WithCancel(callerCtx)

	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	runCtx, span := tracer.StartDetached(base, callerCtx, "race", attribute.String("race.id", "r1"))
	cancelCaller()

	if runCtx.Err() != nil {
		t.Fatal("detached context inherited the caller's cancellation")
	}
	if got := trace.SpanContextFromContext(runCtx).TraceID().String(); got != parent.TraceID() {
		t.Errorf("trace id = %s, want %s", got, parent.TraceID())
	}

	span.End()
	parent.End()
	ended := rec.Ended()
	if len(ended) != 2 || ended[0].Name() != "race" {
		t.Fatalf("ended spans = %d", len(ended))
	}
	if ended[0].Parent().SpanID() != ended[1].SpanContext().SpanID() {
		t.Error("race span is not a child of the caller's span")
	}

	cancelBase()
	if runCtx.Err() == nil {
		t.Error("detached context did not follow base cancellation")
	}
}

func TestNewTraceProvider_Empty(t *testing.T) {
	tp, err := NewTraceProvider(nil, EmptyProvider, ProviderSettings{})
	if err != nil {
		t.Fatalf("NewTraceProvider: %v", err)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}

	if _, err := newExporter("jaeger", ProviderSettings{}); err == nil {
		t.Error("expected unknown provider error")
	}
}
