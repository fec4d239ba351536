package kafka

import (
	"context"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter exposes the writer seam to external tests.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewPublisherWithWriter(w MessageWriter, topic string, logger *slog.Logger) *Publisher {
	return newPublisher(w, topic, logger)
}
