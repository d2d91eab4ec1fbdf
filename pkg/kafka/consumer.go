package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/config"
)

// MessageHandler processes one message. Returning an error leaves the offset
// uncommitted.
type MessageHandler func(ctx context.Context, key, value []byte) error

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer dispatches the messages of one topic to a handler.
type Consumer struct {
	reader  Reader
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer joins the configured consumer group on topic. A non-empty
// groupSuffix gives each process its own group, which broadcast topics such
// as corpus reloads need.
func NewConsumer(cfg config.KafkaConfig, topic, groupSuffix string, handler MessageHandler) *Consumer {
	group := cfg.ConsumerGroup
	if groupSuffix != "" {
		group += "-" + groupSuffix
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return NewConsumerWithReader(r, topic, handler)
}

// NewConsumerWithReader builds a Consumer around an existing reader.
func NewConsumerWithReader(r Reader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("handler failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("decoding kafka message: %w", err)
	}
	return out, nil
}
