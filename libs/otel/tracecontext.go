package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	traceparentKey = "traceparent"
	tracestateKey  = "tracestate"
)

// TraceContext is the W3C trace context of a span in its string form, as it
// is stored next to rows that are processed later.
type TraceContext struct {
	Parent string
	State  string
}

// CurrentTraceContext captures the span active in ctx. Both fields are empty
// when there is none.
func CurrentTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier[traceparentKey], State: carrier[tracestateKey]}
}

func (tc TraceContext) IsZero() bool { return tc.Parent == "" && tc.State == "" }

// Into returns ctx continuing the trace tc was captured from.
func (tc TraceContext) Into(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		traceparentKey: tc.Parent,
		tracestateKey:  tc.State,
	})
}
