package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"
	"ms-storefront/internal/receipt"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type VerifyReceiptRequest struct {
	EncryptedQR string `json:"encrypted_qr"`
}

type VerifyReceiptResponse struct {
	Valid bool          `json:"valid"`
	Token receipt.Token `json:"token"`
	Order *models.Order `json:"order"`
}

// ReceiptQR renders the pickup QR for a confirmed order.
func (h *Handler) ReceiptQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("ReceiptQR: orderId=%s", orderID))

	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "ReceiptQR", utils.HTTPStatus(err), err)
		return
	}
	if order.Status != models.OrderStatusConfirmed {
		h.writeError(w, "ReceiptQR", http.StatusConflict, apperror.Conflict("Order is not confirmed"))
		return
	}

	png, err := h.Receipts.PNG(receipt.NewToken(*order))
	if err != nil {
		h.writeError(w, "ReceiptQR", http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ReceiptQR: failed to write image: %v", err))
	}
}

// VerifyReceipt decodes a scanned receipt and returns the order as it is now.
func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req VerifyReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EncryptedQR == "" {
		_ = utils.WriteError(w, http.StatusBadRequest, "encrypted_qr is required")
		return
	}

	token, err := h.Receipts.Decrypt(req.EncryptedQR)
	if err != nil {
		h.Logger.LogSecurity("RECEIPT_REJECTED", err.Error())
		h.writeError(w, "VerifyReceipt", utils.HTTPStatus(err), err)
		return
	}

	order, err := h.OrderService.GetOrder(r.Context(), token.OrderID)
	if err != nil {
		h.writeError(w, "VerifyReceipt", utils.HTTPStatus(err), err)
		return
	}

	h.writeJSON(w, "VerifyReceipt", http.StatusOK, VerifyReceiptResponse{
		Valid: order.Status == models.OrderStatusConfirmed && order.OrderNumber == token.OrderNumber,
		Token: *token,
		Order: order,
	})
}
