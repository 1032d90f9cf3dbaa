package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

const streamBatchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newWriter(brokers []string, topic string, requiredAcks kafka.RequiredAcks) *kafka.Writer {
	return &kafka.Writer{
		Addr:  kafka.TCP(brokers...),
		Topic: topic,
		// keyed by auction id so one auction's messages stay in one partition
		Balancer:     &kafka.Hash{},
		RequiredAcks: requiredAcks,
	}
}

// newAsyncWriter never blocks the caller. Delivery results, failures
// included, are reported to completion.
func newAsyncWriter(brokers []string, topic string, completion func([]kafka.Message, error)) *kafka.Writer {
	w := newWriter(brokers, topic, kafka.RequireOne)
	w.Async = true
	w.BatchTimeout = streamBatchTimeout
	w.Completion = completion
	return w
}
