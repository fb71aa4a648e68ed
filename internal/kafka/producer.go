package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	brokers []string
	writer  *kafka.Writer
	logger  *slog.Logger
}

func NewProducer(brokers []string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
		logger:  logger,
	}
}

// Publish writes payload as JSON. Messages keyed by reservation id land on the
// same partition, so consumers see one reservation's events in order.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(eventType(payload, topic))}}
	message := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Headers: InjectTraceHeaders(ctx, headers),
		Time:    time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.Debug("published to kafka", "topic", topic, "key", key)
	return nil
}

// PublishWithRetry makes up to maxRetries attempts with a linear backoff of
// 500ms per failed attempt.
func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	return retry(ctx, maxRetries, 500*time.Millisecond, func(ctx context.Context, attempt int) error {
		err := p.Publish(ctx, topic, key, payload)
		if err != nil {
			p.logger.Warn("kafka publish attempt failed", "attempt", attempt, "topic", topic, "err", err)
		}
		return err
	})
}

// WithRetries returns a publisher whose Publish goes through PublishWithRetry.
func (p *Producer) WithRetries(attempts int) *RetryingProducer {
	return &RetryingProducer{producer: p, attempts: attempts}
}

// RetryingProducer is used where no request is waiting on the publish.
type RetryingProducer struct {
	producer *Producer
	attempts int
}

func (r *RetryingProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	return r.producer.PublishWithRetry(ctx, topic, key, payload, r.attempts)
}

func retry(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = fn(ctx, i+1)
		if lastErr == nil {
			return nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * backoff):
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker. Used by the readiness probe.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("kafka brokers not configured")
	}
	dialer := kafka.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	return conn.Close()
}

func eventType(payload interface{}, fallback string) string {
	if event, ok := payload.(ReservationEvent); ok && event.Type != "" {
		return event.Type
	}
	return fallback
}
