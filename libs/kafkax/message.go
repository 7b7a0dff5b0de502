package kafkax

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
)

// Header keys stamped on every event message.
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// Envelope is one domain event on its way to Kafka. The event type doubles as
// the topic and the aggregate id as the partition key, so events for one
// aggregate stay ordered.
type Envelope struct {
	EventID       string
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
}

// Message builds the Kafka message with the trace context of ctx injected.
func (e Envelope) Message(ctx context.Context) kafka.Message {
	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(e.EventID)},
		{Key: HeaderEventType, Value: []byte(e.EventType)},
	}
	if e.AggregateType != "" {
		headers = append(headers, kafka.Header{Key: HeaderAggregateType, Value: []byte(e.AggregateType)})
	}
	return kafka.Message{
		Topic:   e.EventType,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: InjectTraceHeaders(ctx, headers),
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
