package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher sends order events to a durable fanout exchange. The event type
// is the routing key so consumers can filter without decoding.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   *logger.Logger
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	)
}

func NewPublisher(url, exchange string, log *logger.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareExchange(ch, exchange); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, exchange: exchange, logger: log}, nil
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	p.logger.Debug("RABBITMQ", fmt.Sprintf("Publishing to %s [%s]: %s", p.exchange, event.Type, string(payload)))
	return ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.OrderID,
		Timestamp:    event.Timestamp,
		Type:         event.Type,
		Body:         payload,
	})
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
