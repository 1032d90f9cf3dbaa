package kafka

import (
	"context"
	"encoding/json"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// EventStream appends every auction event to a Kafka topic for audit and
// downstream consumers. Writes are asynchronous: a broker outage shows up as
// dropped-event metrics and never slows a bid down.
type EventStream struct {
	writer  messageWriter
	metrics domain.Metrics
	log     logger.Logger
}

func NewEventStream(brokers []string, topic string, metrics domain.Metrics, log logger.Logger) *EventStream {
	s := &EventStream{metrics: metrics, log: log.With("component", "event_stream", "topic", topic)}
	s.writer = newAsyncWriter(brokers, topic, s.completed)
	return s
}

func (k *EventStream) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AuctionID),
		Value: msg,
		Time:  event.Timestamp,
	})
}

func (k *EventStream) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for range messages {
		k.metrics.EventDropped("stream_failed")
	}
	k.log.Error("Failed to append auction events", "count", len(messages), "error", err)
}

func (k *EventStream) Close() error {
	return k.writer.Close()
}
