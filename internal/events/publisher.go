package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers order events after their transaction has committed
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes envelopes to a single topic keyed by correlation id,
// so every event of one order lands on the same partition.
type KafkaPublisher struct {
	w      messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates an asynchronous publisher. Delivery failures are
// reported through the logger, never to the caller.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range messages {
				logger.Error("Failed to deliver order event",
					zap.Error(err),
					zap.String("key", string(m.Key)),
					zap.String("topic", topic),
				)
			}
		},
	}

	return newKafkaPublisher(w, logger)
}

func newKafkaPublisher(w messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{w: w, logger: logger}
}

// Publish encodes env and hands it to the writer
func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", env.EventType, err)
	}

	p.logger.Debug("Order event published",
		zap.String("event_type", env.EventType),
		zap.String("event_id", env.EventID),
		zap.String("order_id", env.CorrelationID),
	)

	return nil
}

// Close flushes pending messages
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }

func (NopPublisher) Close() error { return nil }
