package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled {
		t.Fatal("expected tracing disabled")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio should keep default 1, got %v", cfg.SampleRatio)
	}
	if cfg.ServiceVersion != "dev" || cfg.Environment != "local" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	shutdown, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestSetupRequiresServiceName(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Enabled: true}); err == nil {
		t.Fatal("expected error without a service name")
	}
}

func TestTraceContextWithoutSpan(t *testing.T) {
	tc := CurrentTraceContext(context.Background())
	if !tc.IsZero() {
		t.Fatalf("expected empty trace context, got %+v", tc)
	}
	ctx := context.Background()
	if got := tc.Into(ctx); got != ctx {
		t.Fatal("empty trace context should leave ctx untouched")
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	want := TraceContext{Parent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	got := CurrentTraceContext(want.Into(context.Background()))
	if got.Parent != want.Parent {
		t.Fatalf("traceparent = %q, want %q", got.Parent, want.Parent)
	}
}
