package otelx

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4317")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")

	cfg := ConfigFromEnv("booking-service")
	if !cfg.Enabled {
		t.Fatal("expected tracing enabled")
	}
	if cfg.OTLPEndpoint != "collector:4317" {
		t.Fatalf("expected scheme stripped, got %q", cfg.OTLPEndpoint)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("expected ratio 0.25, got %v", cfg.SampleRatio)
	}

	if !cfg.Insecure || cfg.ServiceVersion != "dev" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	if got := ConfigFromEnv("x").SampleRatio; got != 1 {
		t.Fatalf("expected invalid ratio to fall back to 1, got %v", got)
	}
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "booking-service", Environment: "prod"})
	if len(attrs) != 2 {
		t.Fatalf("expected service name and environment, got %v", attrs)
	}
	if attrs[0].Value.AsString() != "booking-service" || attrs[1].Value.AsString() != "prod" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	tc := CaptureTraceContext(ctx)
	if tc.IsZero() {
		t.Fatal("expected traceparent to be injected")
	}

	restored := CaptureTraceContext(tc.Restore(context.Background()))
	if restored.Traceparent != tc.Traceparent {
		t.Fatalf("expected %q after round trip, got %q", tc.Traceparent, restored.Traceparent)
	}
	if got := (TraceContext{}).Restore(ctx); got != ctx {
		t.Fatal("expected zero trace context to leave ctx untouched")
	}
}
