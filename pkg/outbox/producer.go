package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Writer is the Kafka producer behind the dispatcher. RequireAll keeps the
// durable-feed promise: an event is sent only once every replica has it.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}
