package kafkax

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	msg := kafka.Message{Topic: "calendar.busy.v1", Key: []byte("evt-1")}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "calendar.busy.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	msg.Headers = EventMeta{EventID: "evt-2", EventType: "booking.created.v1"}.Headers()
	meta = ExtractEventMeta(msg)
	if meta.EventID != "evt-2" || meta.EventType != "booking.created.v1" {
		t.Fatalf("headers should win, got %+v", meta)
	}
}

func TestEventMetaCarriesProducerAndTime(t *testing.T) {
	at := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	msg := kafka.Message{Headers: EventMeta{EventID: "e", EventType: "t", Producer: "booking-service", OccurredAt: at}.Headers()}
	meta := ExtractEventMeta(msg)
	if meta.Producer != "booking-service" || !meta.OccurredAt.Equal(at) {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if len(EventMeta{EventID: "e", EventType: "t"}.Headers()) != 2 {
		t.Fatal("optional headers should be omitted when empty")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	if err := ReadyCheck("")(context.Background()); err == nil {
		t.Fatal("expected error when no brokers are configured")
	}
}

func TestInjectTraceHeadersKeepsExisting(t *testing.T) {
	headers := InjectTraceHeaders(context.Background(), []kafka.Header{{Key: "event_id", Value: []byte("x")}})
	if HeaderValue(headers, "event_id") != "x" {
		t.Fatalf("existing header lost: %v", headers)
	}
}

func TestStartConsumeSpanKeepsContextUsable(t *testing.T) {
	msg := kafka.Message{Topic: "calendar.busy.upserted", Partition: 2, Offset: 41}
	ctx, span := StartConsumeSpan(context.Background(), otel.Tracer("test"), msg)
	defer span.End()
	if ctx == nil {
		t.Fatal("expected span context")
	}
}
