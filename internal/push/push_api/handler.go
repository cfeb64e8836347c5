package push_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/google/uuid"
)

type PushDispatcher interface {
	Dispatch(ctx context.Context, n models.PushNotificationRequest) (*models.PushNotificationResponse, error)
}

type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub *models.PushSubscription) error
	DeleteSubscription(ctx context.Context, userID, endpoint string) (int64, error)
}

type Handler struct {
	Dispatcher     PushDispatcher
	Subscriptions  SubscriptionStore
	VAPIDPublicKey string
	Logger         *logger.Logger
}

func NewHandler(dispatcher PushDispatcher, subs SubscriptionStore, vapidPublicKey string, log *logger.Logger) *Handler {
	return &Handler{
		Dispatcher:     dispatcher,
		Subscriptions:  subs,
		VAPIDPublicKey: vapidPublicKey,
		Logger:         log,
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

// SendPushNotification sits behind the auth middleware; anything that goes
// wrong past it is a 500.
func (h *Handler) SendPushNotification(w http.ResponseWriter, r *http.Request) {
	var req models.PushNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "SendPushNotification", http.StatusInternalServerError, apperror.Validation("Invalid request body"))
		return
	}

	resp, err := h.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if apperror.Is(err, apperror.KindUnauthorized) {
			status = http.StatusUnauthorized
		}
		h.writeError(w, "SendPushNotification", status, err)
		return
	}
	h.writeJSON(w, "SendPushNotification", http.StatusOK, resp)
}

// Subscribe stores the browser subscription for the signed-in user. Order
// updates are on unless the client says otherwise; promos are opt-in.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		h.writeError(w, "Subscribe", http.StatusBadRequest, apperror.Validation("Missing endpoint or keys"))
		return
	}

	now := time.Now().UTC()
	sub := &models.PushSubscription{
		ID:           uuid.New().String(),
		UserID:       userID,
		Endpoint:     req.Endpoint,
		P256dh:       req.Keys.P256dh,
		Auth:         req.Keys.Auth,
		OrderUpdates: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.OrderUpdates != nil {
		sub.OrderUpdates = *req.OrderUpdates
	}
	if req.PromoAlerts != nil {
		sub.PromoAlerts = *req.PromoAlerts
	}

	if err := h.Subscriptions.UpsertSubscription(r.Context(), sub); err != nil {
		h.writeError(w, "Subscribe", utils.HTTPStatus(err), err)
		return
	}
	h.Logger.LogPush("SUBSCRIBED", fmt.Sprintf("user=%s order_updates=%t promo=%t", userID, sub.OrderUpdates, sub.PromoAlerts))
	h.writeJSON(w, "Subscribe", http.StatusCreated, map[string]interface{}{"success": true})
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		_ = utils.WriteError(w, http.StatusBadRequest, "Missing endpoint")
		return
	}

	removed, err := h.Subscriptions.DeleteSubscription(r.Context(), userID, req.Endpoint)
	if err != nil {
		h.writeError(w, "Unsubscribe", utils.HTTPStatus(err), err)
		return
	}
	if removed == 0 {
		h.writeError(w, "Unsubscribe", http.StatusNotFound, apperror.NotFound("Subscription not found"))
		return
	}
	h.Logger.LogPush("UNSUBSCRIBED", fmt.Sprintf("user=%s", userID))
	h.writeJSON(w, "Unsubscribe", http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) GetVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.VAPIDPublicKey == "" {
		h.writeError(w, "GetVAPIDPublicKey", http.StatusServiceUnavailable, apperror.Configuration("Push notifications are not configured"))
		return
	}
	h.writeJSON(w, "GetVAPIDPublicKey", http.StatusOK, map[string]string{"publicKey": h.VAPIDPublicKey})
}
