package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
)

const PaymentMethodRazorpay = "razorpay"

type ShippingAddress struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country,omitempty"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID              string           `bun:"id,pk" json:"id"`
	OrderNumber     string           `bun:"order_number,unique,notnull" json:"order_number"`
	UserID          string           `bun:"user_id,nullzero" json:"user_id,omitempty"`
	Status          OrderStatus      `bun:"status,notnull" json:"status"`
	Subtotal        decimal.Decimal  `bun:"subtotal,type:numeric(12,2),notnull" json:"subtotal"`
	GSTAmount       decimal.Decimal  `bun:"gst_amount,type:numeric(12,2),notnull" json:"gst_amount"`
	TotalAmount     decimal.Decimal  `bun:"total_amount,type:numeric(12,2),notnull" json:"total_amount"`
	GoldRateAtOrder decimal.Decimal  `bun:"gold_rate_at_order,type:numeric(12,2),notnull" json:"gold_rate_at_order"`
	ShippingAddress *ShippingAddress `bun:"shipping_address,type:jsonb" json:"shipping_address"`
	PaymentMethod   string           `bun:"payment_method,nullzero" json:"payment_method,omitempty"`
	PaymentID       string           `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	Notes           string           `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt       time.Time        `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time        `bun:"updated_at,notnull" json:"updated_at"`

	Items []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// OrderItem is a point-in-time copy of the product as it was priced at
// checkout. Later product edits never touch it.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID                   string            `bun:"id,pk" json:"id,omitempty"`
	OrderID              string            `bun:"order_id,notnull" json:"order_id,omitempty"`
	ProductID            string            `bun:"product_id,nullzero" json:"product_id"`
	ProductName          string            `bun:"product_name,nullzero" json:"product_name,omitempty"`
	ProductImage         string            `bun:"product_image,nullzero" json:"product_image,omitempty"`
	Quantity             int               `bun:"quantity,notnull" json:"quantity"`
	WeightGrams          decimal.Decimal   `bun:"weight_grams,type:numeric(10,3),notnull" json:"weight_grams"`
	GoldRateApplied      decimal.Decimal   `bun:"gold_rate_applied,type:numeric(12,2),notnull" json:"gold_rate_applied"`
	MakingCharges        decimal.Decimal   `bun:"making_charges,type:numeric(12,2),notnull" json:"making_charges"`
	DiamondCost          decimal.Decimal   `bun:"diamond_cost,type:numeric(12,2),notnull" json:"diamond_cost"`
	StoneCost            decimal.Decimal   `bun:"stone_cost,type:numeric(12,2),notnull" json:"stone_cost"`
	UnitPrice            decimal.Decimal   `bun:"unit_price,type:numeric(12,2),notnull" json:"unit_price"`
	TotalPrice           decimal.Decimal   `bun:"total_price,type:numeric(12,2),notnull" json:"total_price"`
	VariationChoices     map[string]string `bun:"variation_choices,type:jsonb" json:"variation_choices,omitempty"`
	VariationPriceDelta  decimal.Decimal   `bun:"variation_price_delta,type:numeric(12,2),notnull" json:"variation_price_delta"`
	VariationWeightDelta decimal.Decimal   `bun:"variation_weight_delta,type:numeric(10,3),notnull" json:"variation_weight_delta"`
	CreatedAt            time.Time         `bun:"created_at,notnull" json:"created_at"`
}

// GuestOrderRequest is the create-guest-order body. Pointer fields tell
// "absent" apart from zero.
type GuestOrderRequest struct {
	OrderNumber     string           `json:"order_number"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	GSTAmount       decimal.Decimal  `json:"gst_amount"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	GoldRateAtOrder *decimal.Decimal `json:"gold_rate_at_order"`
	ShippingAddress *ShippingAddress `json:"shipping_address"`
	Notes           string           `json:"notes,omitempty"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
	PaymentID       string           `json:"payment_id,omitempty"`
	Items           []OrderItem      `json:"items"`
}

type GuestOrderResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderID           string `json:"order_id"`
}

type VerifyPaymentResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id"`
}

type RazorpayOrderRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Receipt string          `json:"receipt"`
}

type RazorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
	KeyID    string `json:"key_id,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
