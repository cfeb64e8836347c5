package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/rabbitmq/amqp091-go"
)

type OrderEventHandler func(ctx context.Context, event models.OrderEvent) error

// Consumer reads order events from a durable queue bound to the exchange.
type Consumer struct {
	conn   *amqp091.Connection
	queue  string
	logger *logger.Logger
}

func NewConsumer(url, exchange, queue string, log *logger.Logger) (*Consumer, error) {
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

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &Consumer{conn: conn, queue: queue, logger: log}, nil
}

// Start blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context, handler OrderEventHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(32, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume queue: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = ch.Cancel("", false)
		ch.Close()
	}()

	c.logger.Info("RABBITMQ", fmt.Sprintf("Consuming %s", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("RABBITMQ", "consumer channel closed")
				return nil
			}
			c.handle(ctx, msg, handler)
		}
	}
}

// handle acks processed and undecodable deliveries; handler failures are
// requeued once, then dropped.
func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery, handler OrderEventHandler) {
	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Warn("RABBITMQ", fmt.Sprintf("Failed to unmarshal delivery %d: %v", msg.DeliveryTag, err))
		_ = msg.Ack(false)
		return
	}

	c.logger.LogEvents("RECEIVED", c.queue, fmt.Sprintf("type=%s order=%s", event.Type, event.OrderID))
	if err := handler(ctx, event); err != nil {
		c.logger.Error("RABBITMQ", fmt.Sprintf("Handler failed for order %s: %v", event.OrderID, err))
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}
