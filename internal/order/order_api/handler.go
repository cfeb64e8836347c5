package order_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/receipt"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	CreateGuestOrder(ctx context.Context, req models.GuestOrderRequest) (*models.GuestOrderResponse, error)
	VerifyRazorpayPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)
	CreateRazorpayOrder(ctx context.Context, req models.RazorpayOrderRequest) (*models.RazorpayOrderResponse, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type StatusSubscriber interface {
	Subscribe(ctx context.Context, orderID string) <-chan models.OrderStatusUpdate
}

type Handler struct {
	OrderService OrderService
	Receipts     *receipt.QRGenerator
	Status       StatusSubscriber
	Logger       *logger.Logger
}

func NewHandler(orderService OrderService, receipts *receipt.QRGenerator, status StatusSubscriber, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Receipts:     receipts,
		Status:       status,
		Logger:       log,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, op string, status int, v interface{}) {
	if err := utils.WriteJSON(w, status, v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("%s: failed to encode response: %v", op, err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, status int, err error) {
	h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	if encErr := utils.WriteError(w, status, utils.PublicError(err)); encErr != nil {
		h.Logger.Error("API", fmt.Sprintf("%s: failed to encode error: %v", op, encErr))
	}
}

// CreateGuestOrder answers 400 on every failure.
func (h *Handler) CreateGuestOrder(w http.ResponseWriter, r *http.Request) {
	var req models.GuestOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateGuestOrder: failed to decode request: %v", err))
		_ = utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateGuestOrder: order_number=%s items=%d", req.OrderNumber, len(req.Items)))

	resp, err := h.OrderService.CreateGuestOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, "CreateGuestOrder", http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, "CreateGuestOrder", http.StatusOK, resp)
}

// VerifyRazorpayPayment answers 400 on every failure, configuration
// problems included.
func (h *Handler) VerifyRazorpayPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyRazorpayPayment: failed to decode request: %v", err))
		_ = utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.Logger.Info("API", fmt.Sprintf("VerifyRazorpayPayment: order_id=%s gateway_order=%s", req.OrderID, req.RazorpayOrderID))

	resp, err := h.OrderService.VerifyRazorpayPayment(r.Context(), req)
	if err != nil {
		h.writeError(w, "VerifyRazorpayPayment", http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, "VerifyRazorpayPayment", http.StatusOK, resp)
}

func (h *Handler) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	var req models.RazorpayOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateRazorpayOrder: receipt=%s amount=%s", req.Receipt, req.Amount))

	resp, err := h.OrderService.CreateRazorpayOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, "CreateRazorpayOrder", utils.HTTPStatus(err), err)
		return
	}
	h.writeJSON(w, "CreateRazorpayOrder", http.StatusOK, resp)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "GetOrder", utils.HTTPStatus(err), err)
		return
	}
	h.writeJSON(w, "GetOrder", http.StatusOK, order)
}
