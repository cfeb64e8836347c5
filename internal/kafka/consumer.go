package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventHandler processes one decoded event. A returned error is
// retried in place; a validation error drops the message instead.
type OrderEventHandler func(ctx context.Context, event models.OrderEvent) error

type Consumer struct {
	reader     messageReader
	logger     *logger.Logger
	newBackOff func() backoff.BackOff
}

// handlerBackOff never gives up: the partition waits on the failing message
// until the handler succeeds or the consumer is stopped.
func handlerBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log, newBackOff: handlerBackOff}
}

// Start consumes until ctx is cancelled. Undecodable messages are committed
// and skipped so they cannot block the partition. A message is committed
// only once its handler succeeds, so offsets never move past a failure.
func (c *Consumer) Start(ctx context.Context, handler OrderEventHandler) error {
	c.logger.Info("KAFKA", "Kafka consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("KAFKA", "Kafka consumer stopped")
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return fmt.Errorf("fetch message: %w", err)
		}

		var event models.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
			c.commit(ctx, msg)
			continue
		}

		c.logger.LogEvents("RECEIVED", msg.Topic, fmt.Sprintf("type=%s order=%s", event.Type, event.OrderID))
		if err := c.handle(ctx, event, handler); err != nil {
			if ctx.Err() != nil {
				// left uncommitted; the group redelivers it on restart
				c.logger.Info("KAFKA", fmt.Sprintf("Kafka consumer stopped with offset %d pending", msg.Offset))
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Dropping event for order %s at offset %d: %v", event.OrderID, msg.Offset, err))
		}
		c.commit(ctx, msg)
	}
}

// handle runs handler until it succeeds, returns a validation error, or ctx
// is done.
func (c *Consumer) handle(ctx context.Context, event models.OrderEvent, handler OrderEventHandler) error {
	newBackOff := c.newBackOff
	if newBackOff == nil {
		newBackOff = handlerBackOff
	}

	attempt := 0
	op := func() error {
		attempt++
		err := handler(ctx, event)
		if err != nil && apperror.KindOf(err) == apperror.KindValidation {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("KAFKA", fmt.Sprintf("Handler failed for order %s (attempt %d), retrying in %s: %v", event.OrderID, attempt, wait, err))
	}
	return backoff.RetryNotify(op, backoff.WithContext(newBackOff(), ctx), notify)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Warn("KAFKA", fmt.Sprintf("Failed to commit offset %d: %v", msg.Offset, err))
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
