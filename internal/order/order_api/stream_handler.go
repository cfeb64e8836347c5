package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, update models.OrderStatusUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// StreamOrderStatus sends the current status, then every change, until the
// client goes away.
func (h *Handler) StreamOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "StreamOrderStatus", utils.HTTPStatus(err), err)
		return
	}

	ctx := r.Context()
	updates := h.Status.Subscribe(ctx, orderID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	initial := models.OrderStatusUpdate{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		PaymentID:   order.PaymentID,
		UpdatedAt:   order.UpdatedAt,
	}
	if err := writeEvent(w, flusher, "status", initial); err != nil {
		return
	}
	h.Logger.Info("SSE", fmt.Sprintf("Client watching order %s", orderID))

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, flusher, "status", update); err != nil {
				h.Logger.Debug("SSE", fmt.Sprintf("Write to client of order %s failed: %v", orderID, err))
				return
			}
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client of order %s disconnected", orderID))
			return
		}
	}
}
