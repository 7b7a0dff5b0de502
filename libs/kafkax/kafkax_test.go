package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestEnvelopeMessage(t *testing.T) {
	msg := Envelope{
		EventID:     "evt-1",
		EventType:   "booking.appointment.booked.v1",
		AggregateID: "appt-1",
		Payload:     []byte(`{}`),
	}.Message(context.Background())

	if msg.Topic != "booking.appointment.booked.v1" || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected routing topic=%q key=%q", msg.Topic, msg.Key)
	}
	if HeaderValue(msg.Headers, HeaderEventID) != "evt-1" {
		t.Fatal("expected event_id header")
	}
	if HeaderValue(msg.Headers, HeaderAggregateType) != "" {
		t.Fatal("expected no aggregate_type header when unset")
	}
}

func TestTraceHeadersInjected(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceHeaders(ctx, []kafka.Header{
		{Key: "event_id", Value: []byte("1")},
		{Key: "traceparent", Value: []byte("stale")},
	})
	if len(headers) != 2 {
		t.Fatalf("expected stale traceparent to be replaced, got %d headers", len(headers))
	}
	if HeaderValue(headers, "event_id") != "1" {
		t.Fatal("expected existing headers to be kept")
	}

	c := headerCarrier(headers)
	extracted := propagation.TraceContext{}.Extract(context.Background(), &c)
	got := trace.SpanContextFromContext(extracted)
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("expected trace id %s, got %s", span.SpanContext().TraceID(), got.TraceID())
	}
}
