// Package kafka wraps segmentio/kafka-go with a JSON producer and a
// commit-after-handle consumer.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/config"
)

// Writer is the subset of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON-encoded values to one topic.
type Producer struct {
	writer Writer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a Producer for topic on the configured brokers.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(w, topic)
}

// NewProducerWithWriter builds a Producer around an existing writer.
func NewProducerWithWriter(w Writer, topic string) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish marshals each value and writes them in one call. Keys pick the
// partition.
func (p *Producer) Publish(ctx context.Context, key string, values ...any) error {
	if len(values) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %T for %s: %w", v, p.topic, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(key), Value: data})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publishing %d message(s) to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("published", "key", key, "count", len(msgs))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
