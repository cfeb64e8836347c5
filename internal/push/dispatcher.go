package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

type DispatchStore interface {
	MatchingSubscriptions(ctx context.Context, n models.PushNotificationRequest) ([]models.PushSubscription, error)
	EnqueueNotification(ctx context.Context, entry *models.NotificationQueueEntry) error
}

// Dispatcher resolves who a notification is for and queues it. Delivery
// happens in the Worker.
type Dispatcher struct {
	store  DispatchStore
	logger *logger.Logger
}

func NewDispatcher(store DispatchStore, log *logger.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: log}
}

func validate(n models.PushNotificationRequest) error {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Body) == "" {
		return apperror.Validation("Missing title or body")
	}
	switch n.NotificationType {
	case models.NotificationOrderUpdate, models.NotificationPromo:
		return nil
	default:
		return apperror.Validation(fmt.Sprintf("Invalid notification type: %q", n.NotificationType))
	}
}

// Dispatch queues n for every matching subscription. With no match nothing
// is written and sent is 0.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.PushNotificationRequest) (*models.PushNotificationResponse, error) {
	if err := validate(n); err != nil {
		return nil, err
	}

	subs, err := d.store.MatchingSubscriptions(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		d.logger.LogPush("NO_MATCH", fmt.Sprintf("type=%s user=%s", n.NotificationType, n.UserID))
		return &models.PushNotificationResponse{Message: "No subscriptions found", Sent: 0}, nil
	}

	targets := make([]string, len(subs))
	for i, sub := range subs {
		targets[i] = sub.ID
	}

	now := time.Now().UTC()
	entry := &models.NotificationQueueEntry{
		Title:            n.Title,
		Body:             n.Body,
		URL:              n.URL,
		NotificationType: n.NotificationType,
		UserID:           n.UserID,
		OrderID:          n.OrderID,
		TargetIDs:        targets,
		Status:           models.QueueStatusPending,
		NextRetry:        now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := d.store.EnqueueNotification(ctx, entry); err != nil {
		return nil, err
	}

	d.logger.LogPush("QUEUED", fmt.Sprintf("type=%s targets=%d queue_id=%d", n.NotificationType, len(targets), entry.ID))
	return &models.PushNotificationResponse{
		Message: fmt.Sprintf("Notification queued for %d subscriptions", len(targets)),
		Sent:    len(targets),
	}, nil
}

// HandleOrderEvent turns a confirmed order into an order update for its
// owner. Guest orders have no owner and are skipped.
func (d *Dispatcher) HandleOrderEvent(ctx context.Context, event models.OrderEvent) error {
	if event.Type != models.EventOrderConfirmed {
		return nil
	}
	if event.UserID == "" {
		d.logger.Debug("PUSH", fmt.Sprintf("Order %s has no user, skipping push", event.OrderNumber))
		return nil
	}

	_, err := d.Dispatch(ctx, models.PushNotificationRequest{
		Title:            "Order confirmed",
		Body:             fmt.Sprintf("Your order %s is confirmed. We'll let you know when it ships.", event.OrderNumber),
		URL:              "/orders/" + event.OrderID,
		NotificationType: models.NotificationOrderUpdate,
		UserID:           event.UserID,
		OrderID:          event.OrderID,
	})
	return err
}
