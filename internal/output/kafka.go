package output

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes records to a topic, keyed by target URL
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink for the given broker and topic.
// Hash balancing keeps every record of one target on one partition, in order.
func NewKafkaSink(broker, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaSinkWithWriter builds a sink using a custom writer (tests).
func NewKafkaSinkWithWriter(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// Append publishes rec synchronously
func (k *KafkaSink) Append(ctx context.Context, rec storage.Record) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:     []byte(rec.Key()),
		Value:   payload,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "kind", Value: []byte(rec.Kind)}},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s record: %w", rec.Kind, err)
	}
	return nil
}

// Close shuts down the underlying writer
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
