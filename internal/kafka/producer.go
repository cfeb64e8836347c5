package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams order lifecycle events. Each event type has its own
// topic; the order id is the message key so one order's events stay ordered.
type Producer struct {
	Writer messageWriter
	topics config.TopicConfig
	logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{Writer: writer, topics: topics, logger: log}
}

func (p *Producer) topicFor(eventType string) (string, error) {
	switch eventType {
	case models.EventOrderCreated:
		return p.topics.OrderCreated, nil
	case models.EventOrderConfirmed:
		return p.topics.OrderConfirmed, nil
	default:
		return "", fmt.Errorf("no topic for event type %q", eventType)
	}
}

// PublishOrderEvent streams the event to the topic of its type
func (p *Producer) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	topic, err := p.topicFor(event.Type)
	if err != nil {
		return err
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.logger.Debug("KAFKA", fmt.Sprintf("Publishing to Kafka [%s]: %s", topic, string(msgBytes)))

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   []byte(event.OrderID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
