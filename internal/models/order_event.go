package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
)

// OrderEvent is published on the event broker whenever an order is created
// or confirmed.
type OrderEvent struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id,omitempty"`
	Status      OrderStatus     `json:"status"`
	PaymentID   string          `json:"payment_id,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Timestamp   time.Time       `json:"timestamp"`
}

func NewOrderEvent(eventType string, order Order) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		PaymentID:   order.PaymentID,
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
	}
}

// OrderStatusUpdate is streamed to browsers watching an order.
type OrderStatusUpdate struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status"`
	PaymentID   string      `json:"payment_id,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
