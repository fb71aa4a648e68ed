package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger.With("topic", topic, "group", groupID),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads until ctx is done. The handler receives a context carrying the
// producer's trace. A handler error stops consumption.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if err := handler(ExtractTraceContext(ctx, msg), msg); err != nil {
			return fmt.Errorf("handle message at offset %d: %w", msg.Offset, err)
		}
	}
}

// JSONHandler decodes each message into T. Undecodable messages are logged
// and skipped so one bad record does not stall the group.
func JSONHandler[T any](logger *slog.Logger, handle func(context.Context, T) error) func(context.Context, kafka.Message) error {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg kafka.Message) error {
		var value T
		if err := json.Unmarshal(msg.Value, &value); err != nil {
			logger.Warn("skipping undecodable message",
				"topic", msg.Topic, "offset", msg.Offset, "key", string(msg.Key), "err", err)
			return nil
		}
		return handle(ctx, value)
	}
}
