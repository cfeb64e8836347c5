package models

import (
	"time"

	"github.com/uptrace/bun"
)

type NotificationType string

const (
	NotificationOrderUpdate NotificationType = "order_update"
	NotificationPromo       NotificationType = "promo"
)

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// PushSubscription is unique per (user_id, endpoint).
type PushSubscription struct {
	bun.BaseModel `bun:"table:push_subscriptions,alias:ps"`

	ID           string    `bun:"id,pk" json:"id"`
	UserID       string    `bun:"user_id,notnull,unique:user_endpoint" json:"user_id"`
	Endpoint     string    `bun:"endpoint,notnull,unique:user_endpoint" json:"endpoint"`
	P256dh       string    `bun:"p256dh,notnull" json:"p256dh"`
	Auth         string    `bun:"auth,notnull" json:"auth"`
	OrderUpdates bool      `bun:"order_updates,notnull" json:"order_updates"`
	PromoAlerts  bool      `bun:"promo_alerts,notnull" json:"promo_alerts"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// NotificationQueueEntry records one dispatch request and the subscriptions
// it targets. The queue worker delivers it and tracks retries.
type NotificationQueueEntry struct {
	bun.BaseModel `bun:"table:notification_queue,alias:nq"`

	ID               int64            `bun:"id,pk,autoincrement" json:"id"`
	Title            string           `bun:"title,notnull" json:"title"`
	Body             string           `bun:"body,notnull" json:"body"`
	URL              string           `bun:"url,nullzero" json:"url,omitempty"`
	NotificationType NotificationType `bun:"notification_type,notnull" json:"notification_type"`
	UserID           string           `bun:"user_id,nullzero" json:"user_id,omitempty"`
	OrderID          string           `bun:"order_id,nullzero" json:"order_id,omitempty"`
	TargetIDs        []string         `bun:"target_ids,type:jsonb" json:"target_ids"`
	Status           QueueStatus      `bun:"status,notnull" json:"status"`
	Attempts         int              `bun:"attempts,notnull" json:"attempts"`
	DeliveredCount   int              `bun:"delivered_count,notnull" json:"delivered_count"`
	NextRetry        time.Time        `bun:"next_retry,notnull" json:"next_retry"`
	LastError        string           `bun:"last_error,nullzero" json:"last_error,omitempty"`
	CreatedAt        time.Time        `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time        `bun:"updated_at,notnull" json:"updated_at"`
}

type PushNotificationRequest struct {
	Title            string           `json:"title"`
	Body             string           `json:"body"`
	URL              string           `json:"url,omitempty"`
	NotificationType NotificationType `json:"notificationType"`
	UserID           string           `json:"userId,omitempty"`
	OrderID          string           `json:"orderId,omitempty"`
}

type PushNotificationResponse struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
}

// PushMessage is what the service worker receives.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	OrderUpdates *bool `json:"order_updates,omitempty"`
	PromoAlerts  *bool `json:"promo_alerts,omitempty"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}
