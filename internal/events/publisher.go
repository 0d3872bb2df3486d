package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"alpharia-assessment/internal/domain"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// DefaultTopic receives every attempt lifecycle event.
const DefaultTopic = "assessment.attempts"

// Publisher implements app.EventPublisher on top of any Watermill publisher.
type Publisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	topic     string
}

// KafkaConfig holds configuration for the Kafka-backed publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// NewKafkaPublisher creates a Kafka-based publisher using Watermill.
func NewKafkaPublisher(cfg KafkaConfig) (*Publisher, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}
	return New(pub, cfg.Topic, cfg.Logger), nil
}

// NewChannelPublisher returns an in-process publisher together with the
// underlying pub/sub, so local consumers can subscribe to the same topic.
func NewChannelPublisher(topic string, logger *slog.Logger) (*Publisher, *gochannel.GoChannel) {
	if logger == nil {
		logger = slog.Default()
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger))
	return New(pubSub, topic, logger), pubSub
}

// New wraps an existing Watermill publisher.
func New(pub message.Publisher, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{publisher: pub, logger: logger, topic: topic}
}

// PublishAttemptEvent marshals event as JSON and publishes it with metadata headers.
func (p *Publisher) PublishAttemptEvent(ctx context.Context, event domain.AttemptEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("session_id", event.SessionID)
	msg.Metadata.Set("student_id", event.StudentID)
	msg.Metadata.Set("timestamp", event.OccurredAt.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("failed to publish attempt event",
			"event_type", event.Type,
			"session", event.SessionID,
			"error", err)
		return fmt.Errorf("failed to publish attempt event: %w", err)
	}

	p.logger.Debug("published attempt event",
		"event_type", event.Type,
		"attempt", event.AttemptID,
		"topic", p.topic)
	return nil
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string { return p.topic }

// Close closes the publisher and releases resources.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}

// Decode parses a message produced by PublishAttemptEvent.
func Decode(msg *message.Message) (domain.AttemptEvent, error) {
	var event domain.AttemptEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return domain.AttemptEvent{}, fmt.Errorf("decode attempt event %s: %w", msg.UUID, err)
	}
	return event, nil
}

// LogEvents consumes topic from sub and logs every attempt event until ctx ends.
func LogEvents(ctx context.Context, sub message.Subscriber, topic string, logger *slog.Logger) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	go func() {
		for msg := range messages {
			event, err := Decode(msg)
			if err != nil {
				logger.Warn("dropping attempt event", "error", err)
				msg.Ack()
				continue
			}
			logger.Info("attempt event",
				"event_type", event.Type,
				"session", event.SessionID,
				"student", event.StudentID,
				"attempt", event.AttemptID)
			msg.Ack()
		}
	}()
	return nil
}
