package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-storefront/internal/config"
	"ms-storefront/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone means the push service no longer knows the endpoint
// and the subscription should be dropped.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Transport delivers one encrypted payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// WebPushTransport speaks the Web Push protocol with VAPID authentication.
type WebPushTransport struct {
	cfg    config.PushConfig
	client *http.Client
}

func NewWebPushTransport(cfg config.PushConfig, client *http.Client) *WebPushTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushTransport{cfg: cfg, client: client}
}

func (t *WebPushTransport) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	if t.cfg.VAPIDPublicKey == "" || t.cfg.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID keys not configured")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.cfg.Subject,
		VAPIDPublicKey:  t.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: t.cfg.VAPIDPrivateKey,
		TTL:             t.cfg.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("web push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push service returned %d: %s", resp.StatusCode, string(body))
	}
}
