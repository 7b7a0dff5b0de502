package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is a serialised W3C trace context, kept on rows that are
// processed after the originating request has finished.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Traceparent: carrier.Get("traceparent"), Tracestate: carrier.Get("tracestate")}
}

func (tc TraceContext) IsZero() bool { return tc.Traceparent == "" }

// Restore returns ctx with tc as the remote parent span. A zero tc leaves ctx untouched.
func (tc TraceContext) Restore(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Traceparent}
	if tc.Tracestate != "" {
		carrier.Set("tracestate", tc.Tracestate)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
