package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"shareai/chatrelay/pkg/config"
)

// restoreGlobals puts the global provider and propagator back after a test
// that installs its own.
func restoreGlobals(t *testing.T) {
	t.Helper()
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(config.TracingConfig{Enabled: false, ServiceName: "test"}, "v0")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	_, span := tracer.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected no-op span")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestNew_Enabled(t *testing.T) {
	restoreGlobals(t)

	cfg := config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		Endpoint:    "localhost:4317",
		ServiceName: "chatrelay-test",
		Insecure:    true,
		Timeout:     time.Second,
	}
	tracer, err := New(cfg, "v1.2.3")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tracer.Shutdown(ctx)
	}()

	if !tracer.Enabled() {
		t.Error("expected enabled tracer")
	}

	ctx, span := tracer.Start(context.Background(), "sampled")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("expected always sampler to sample")
	}
	if TraceID(ctx) == "" {
		t.Error("expected trace ID in context")
	}
}

func TestNew_InvalidSampler(t *testing.T) {
	_, err := New(config.TracingConfig{Enabled: true, Sampler: "sometimes", Endpoint: "localhost:4317"}, "")
	if err == nil {
		t.Error("expected error for unknown sampler")
	}
}

func TestTraceID_NoSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("expected empty trace ID, got %q", got)
	}
}

func TestSetStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("upstream timeout"))
	failed.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected Ok status, got %v", spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "upstream timeout" {
		t.Errorf("expected Error status, got %v", spans[1].Status())
	}
	if len(spans[1].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}
