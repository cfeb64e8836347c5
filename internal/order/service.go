package order

import (
	"context"
	"fmt"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DBLayer interface {
	CreateGuestOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	ConfirmPayment(ctx context.Context, orderID, paymentID string) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderWithItems(ctx context.Context, id string) (*models.Order, error)
}

type PaymentLock interface {
	LockPayment(ctx context.Context, orderID, token string) (bool, error)
	UnlockPayment(ctx context.Context, orderID, token string) error
}

type SignatureVerifier interface {
	Verify(gatewayOrderID, gatewayPaymentID, signature string) error
}

type GatewayClient interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*models.RazorpayOrderResponse, error)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type StatusEmitter interface {
	EmitOrderStatus(update models.OrderStatusUpdate)
}

type OrderService struct {
	DB       DBLayer
	Lock     PaymentLock
	Verifier SignatureVerifier
	Gateway  GatewayClient
	Events   EventPublisher // nil disables publishing
	Status   StatusEmitter  // nil disables streaming
	Logger   *logger.Logger
	checkout config.CheckoutConfig
}

func NewOrderService(
	db DBLayer,
	lock PaymentLock,
	verifier SignatureVerifier,
	gateway GatewayClient,
	events EventPublisher,
	status StatusEmitter,
	checkout config.CheckoutConfig,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		DB:       db,
		Lock:     lock,
		Verifier: verifier,
		Gateway:  gateway,
		Events:   events,
		Status:   status,
		Logger:   log,
		checkout: checkout,
	}
}

// ---------------- GUEST CHECKOUT ----------------

func (s *OrderService) validateGuestOrder(req models.GuestOrderRequest) error {
	if req.OrderNumber == "" || req.TotalAmount == nil || req.GoldRateAtOrder == nil || req.ShippingAddress == nil {
		return apperror.Validation("Missing required fields")
	}
	if req.Items == nil {
		return apperror.Validation("Items must be an array")
	}
	if len(req.Items) == 0 && !s.checkout.AllowEmptyItems {
		return apperror.Validation("Order must contain at least one item")
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return apperror.Validation(fmt.Sprintf("Item %d has invalid quantity", i+1))
		}
	}
	return nil
}

// CreateGuestOrder stores an order placed without an account. The order is
// confirmed right away when the caller already holds a payment id.
func (s *OrderService) CreateGuestOrder(ctx context.Context, req models.GuestOrderRequest) (*models.GuestOrderResponse, error) {
	if err := s.validateGuestOrder(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     req.OrderNumber,
		Status:          models.OrderStatusPending,
		Subtotal:        req.Subtotal,
		GSTAmount:       req.GSTAmount,
		TotalAmount:     *req.TotalAmount,
		GoldRateAtOrder: *req.GoldRateAtOrder,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentID:       req.PaymentID,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.PaymentID != "" {
		order.Status = models.OrderStatusConfirmed
	}

	items := make([]models.OrderItem, len(req.Items))
	for i, item := range req.Items {
		item.ID = uuid.New().String()
		item.OrderID = order.ID
		item.CreatedAt = now
		items[i] = item
	}

	if err := s.DB.CreateGuestOrder(ctx, order, items); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Failed to create guest order %s: %v", req.OrderNumber, err))
		return nil, err
	}
	s.Logger.LogOrder("CREATED", order.ID, fmt.Sprintf("number=%s status=%s items=%d", order.OrderNumber, order.Status, len(items)))

	s.publish(ctx, models.EventOrderCreated, *order)
	s.emit(*order)

	return &models.GuestOrderResponse{
		Success:     true,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
	}, nil
}

// ---------------- PAYMENT ----------------

// VerifyRazorpayPayment confirms the order only if the gateway signature
// checks out. Nothing is written on any failure.
func (s *OrderService) VerifyRazorpayPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	if req.OrderID == "" || req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, apperror.Validation("Missing required fields")
	}

	if err := s.Verifier.Verify(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature); err != nil {
		s.Logger.LogSecurity("PAYMENT_VERIFY_FAILED", fmt.Sprintf("order=%s gateway_order=%s: %v", req.OrderID, req.RazorpayOrderID, err))
		return nil, err
	}

	if _, err := uuid.Parse(req.OrderID); err != nil {
		return nil, apperror.NotFound("Order not found")
	}

	token := uuid.New().String()
	locked, err := s.Lock.LockPayment(ctx, req.OrderID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire payment lock: %w", err)
	}
	if !locked {
		return nil, apperror.Conflict("Payment verification already in progress")
	}
	defer func() {
		if err := s.Lock.UnlockPayment(context.WithoutCancel(ctx), req.OrderID, token); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release payment lock for %s: %v", req.OrderID, err))
		}
	}()

	changed, err := s.DB.ConfirmPayment(ctx, req.OrderID, req.RazorpayPaymentID)
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to confirm order %s: %v", req.OrderID, err))
		return nil, err
	}

	if changed {
		s.Logger.LogPayment("CONFIRMED", req.OrderID, fmt.Sprintf("payment=%s", req.RazorpayPaymentID))
		if order, err := s.DB.GetOrderByID(ctx, req.OrderID); err != nil {
			s.Logger.Warn("ORDER", fmt.Sprintf("Confirmed order %s could not be reloaded: %v", req.OrderID, err))
		} else {
			s.publish(ctx, models.EventOrderConfirmed, *order)
			s.emit(*order)
		}
	} else {
		s.Logger.LogPayment("ALREADY_CONFIRMED", req.OrderID, fmt.Sprintf("payment=%s", req.RazorpayPaymentID))
	}

	return &models.VerifyPaymentResponse{
		Success:   true,
		PaymentID: req.RazorpayPaymentID,
	}, nil
}

// CreateRazorpayOrder opens a gateway order for the browser checkout.
func (s *OrderService) CreateRazorpayOrder(ctx context.Context, req models.RazorpayOrderRequest) (*models.RazorpayOrderResponse, error) {
	return s.Gateway.CreateOrder(ctx, req.Amount, req.Receipt)
}

// ---------------- QUERIES ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NotFound("Order not found")
	}
	return s.DB.GetOrderWithItems(ctx, id)
}

// ---------------- SIDE EFFECTS ----------------

func (s *OrderService) publish(ctx context.Context, eventType string, order models.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishOrderEvent(ctx, models.NewOrderEvent(eventType, order)); err != nil {
		s.Logger.LogEvents("PUBLISH_FAILED", eventType, fmt.Sprintf("order=%s: %v", order.ID, err))
		return
	}
	s.Logger.LogEvents("PUBLISHED", eventType, fmt.Sprintf("order=%s", order.ID))
}

func (s *OrderService) emit(order models.Order) {
	if s.Status == nil {
		return
	}
	s.Status.EmitOrderStatus(models.OrderStatusUpdate{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		PaymentID:   order.PaymentID,
		UpdatedAt:   order.UpdatedAt,
	})
}
