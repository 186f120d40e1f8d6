package kafkax

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID    = "event_id"
	HeaderEventType  = "event_type"
	HeaderProducer   = "producer"
	HeaderOccurredAt = "occurred_at"
)

// EventMeta travels as headers on every message the booking service writes
// and is read back from calendar-sync messages it consumes.
type EventMeta struct {
	EventID    string
	EventType  string
	Producer   string
	OccurredAt time.Time
}

// Headers renders m. Empty optional fields are omitted.
func (m EventMeta) Headers() []kafka.Header {
	h := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(m.EventID)},
		{Key: HeaderEventType, Value: []byte(m.EventType)},
	}
	if m.Producer != "" {
		h = append(h, kafka.Header{Key: HeaderProducer, Value: []byte(m.Producer)})
	}
	if !m.OccurredAt.IsZero() {
		h = append(h, kafka.Header{Key: HeaderOccurredAt, Value: []byte(m.OccurredAt.UTC().Format(time.RFC3339Nano))})
	}
	return h
}

// ExtractEventMeta reads the headers of msg. Producers that send no id or
// type fall back to the message key and topic.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	m := EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
		Producer:  HeaderValue(msg.Headers, HeaderProducer),
	}
	if m.EventID == "" {
		m.EventID = string(msg.Key)
	}
	if m.EventType == "" {
		m.EventType = msg.Topic
	}
	if ts, err := time.Parse(time.RFC3339Nano, HeaderValue(msg.Headers, HeaderOccurredAt)); err == nil {
		m.OccurredAt = ts
	} else if !msg.Time.IsZero() {
		m.OccurredAt = msg.Time
	}
	return m
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
