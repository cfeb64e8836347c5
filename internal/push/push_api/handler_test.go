package push_api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/push/push_api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, n models.PushNotificationRequest) (*models.PushNotificationResponse, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PushNotificationResponse), args.Error(1)
}

type MockSubscriptionStore struct {
	mock.Mock
}

func (m *MockSubscriptionStore) UpsertSubscription(ctx context.Context, sub *models.PushSubscription) error {
	return m.Called(sub).Error(0)
}

func (m *MockSubscriptionStore) DeleteSubscription(ctx context.Context, userID, endpoint string) (int64, error) {
	args := m.Called(userID, endpoint)
	return args.Get(0).(int64), args.Error(1)
}

// withUser stands in for the auth middleware.
func withUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != "" {
				r = r.WithContext(auth.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setup(userID, vapidKey string) (*MockDispatcher, *MockSubscriptionStore, http.Handler) {
	d := new(MockDispatcher)
	s := new(MockSubscriptionStore)
	h := push_api.NewHandler(d, s, vapidKey, logger.NewNop())

	r := chi.NewRouter()
	r.Get("/api/push/vapid-public-key", h.GetVAPIDPublicKey)
	r.Group(func(r chi.Router) {
		r.Use(withUser(userID))
		r.Post("/functions/v1/send-push-notification", h.SendPushNotification)
		r.Post("/api/push/subscriptions", h.Subscribe)
		r.Delete("/api/push/subscriptions", h.Unsubscribe)
	})
	return d, s, r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSendPushNotification(t *testing.T) {
	d, _, router := setup("", "")
	req := models.PushNotificationRequest{
		Title:            "Order shipped",
		Body:             "On its way",
		NotificationType: models.NotificationOrderUpdate,
		UserID:           "user-1",
	}
	d.On("Dispatch", req).Return(&models.PushNotificationResponse{Message: "Notification queued for 2 subscriptions", Sent: 2}, nil)

	rr := do(router, http.MethodPost, "/functions/v1/send-push-notification",
		`{"title":"Order shipped","body":"On its way","notificationType":"order_update","userId":"user-1"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Notification queued for 2 subscriptions","sent":2}`, rr.Body.String())
	d.AssertExpectations(t)
}

func TestSendPushNotificationNoMatches(t *testing.T) {
	d, _, router := setup("", "")
	d.On("Dispatch", mock.Anything).Return(&models.PushNotificationResponse{Message: "No subscriptions found", Sent: 0}, nil)

	rr := do(router, http.MethodPost, "/functions/v1/send-push-notification",
		`{"title":"Sale","body":"Today only","notificationType":"promo"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"No subscriptions found","sent":0}`, rr.Body.String())
}

func TestSendPushNotificationErrorsAre500(t *testing.T) {
	d, _, router := setup("", "")
	d.On("Dispatch", mock.Anything).Return(nil, apperror.Validation(`Invalid notification type: "sms"`)).Once()

	rr := do(router, http.MethodPost, "/functions/v1/send-push-notification",
		`{"title":"t","body":"b","notificationType":"sms"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid notification type")

	d.On("Dispatch", mock.Anything).Return(nil, errors.New("connection reset")).Once()
	rr = do(router, http.MethodPost, "/functions/v1/send-push-notification",
		`{"title":"t","body":"b","notificationType":"promo"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())

	rr = do(router, http.MethodPost, "/functions/v1/send-push-notification", `not json`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestSubscribe(t *testing.T) {
	_, s, router := setup("user-1", "")
	s.On("UpsertSubscription", mock.MatchedBy(func(sub *models.PushSubscription) bool {
		return sub.UserID == "user-1" &&
			sub.Endpoint == "https://push.example/a" &&
			sub.P256dh == "key" && sub.Auth == "secret" &&
			sub.OrderUpdates && sub.PromoAlerts &&
			sub.ID != ""
	})).Return(nil)

	rr := do(router, http.MethodPost, "/api/push/subscriptions",
		`{"endpoint":"https://push.example/a","keys":{"p256dh":"key","auth":"secret"},"promo_alerts":true}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	s.AssertExpectations(t)
}

func TestSubscribeValidation(t *testing.T) {
	_, s, router := setup("user-1", "")

	rr := do(router, http.MethodPost, "/api/push/subscriptions", `{"endpoint":"https://push.example/a"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	s.AssertNotCalled(t, "UpsertSubscription", mock.Anything)
}

func TestSubscribeRequiresUser(t *testing.T) {
	_, s, router := setup("", "")

	rr := do(router, http.MethodPost, "/api/push/subscriptions",
		`{"endpoint":"https://push.example/a","keys":{"p256dh":"key","auth":"secret"}}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
	s.AssertNotCalled(t, "UpsertSubscription", mock.Anything)

	rr = do(router, http.MethodDelete, "/api/push/subscriptions", `{"endpoint":"https://push.example/a"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnsubscribe(t *testing.T) {
	_, s, router := setup("user-1", "")
	s.On("DeleteSubscription", "user-1", "https://push.example/a").Return(int64(1), nil)
	s.On("DeleteSubscription", "user-1", "https://push.example/missing").Return(int64(0), nil)

	rr := do(router, http.MethodDelete, "/api/push/subscriptions", `{"endpoint":"https://push.example/a"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, http.MethodDelete, "/api/push/subscriptions", `{"endpoint":"https://push.example/missing"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(router, http.MethodDelete, "/api/push/subscriptions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	_, _, router := setup("", "BPublicKey")
	rr := do(router, http.MethodGet, "/api/push/vapid-public-key", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"publicKey":"BPublicKey"}`, rr.Body.String())

	_, _, router = setup("", "")
	rr = do(router, http.MethodGet, "/api/push/vapid-public-key", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
