package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x01},
		SpanID:     trace.SpanID{0x0b, 0x02},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	tc := CaptureTraceContext(ctx)
	if tc.IsZero() {
		t.Fatalf("expected a traceparent to be captured")
	}

	restored := trace.SpanContextFromContext(tc.Context(context.Background()))
	if restored.TraceID() != sc.TraceID() || restored.SpanID() != sc.SpanID() {
		t.Fatalf("restored %v/%v, want %v/%v", restored.TraceID(), restored.SpanID(), sc.TraceID(), sc.SpanID())
	}
}

func TestZeroTraceContextLeavesContextAlone(t *testing.T) {
	ctx := context.Background()
	if got := (TraceContext{}).Context(ctx); got != ctx {
		t.Fatalf("zero trace context should return the input context")
	}
	if !CaptureTraceContext(ctx).IsZero() {
		t.Fatalf("no active span should capture nothing")
	}
}
