package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultIcon  = "/icons/icon-192x192.png"
	defaultBadge = "/icons/badge-72x72.png"
	claimLease   = 30 * time.Second
	sendTimeout  = 10 * time.Second
)

type QueueStore interface {
	ClaimDue(ctx context.Context, batch int, now time.Time, lease time.Duration) ([]models.NotificationQueueEntry, error)
	SubscriptionsByIDs(ctx context.Context, ids []string) ([]models.PushSubscription, error)
	SaveDeliveryState(ctx context.Context, entry *models.NotificationQueueEntry) error
	DeleteSubscriptionByID(ctx context.Context, id string) error
}

// Worker drains the notification queue. Failed deliveries are retried with
// exponential backoff until MaxAttempts, then the entry is marked failed.
type Worker struct {
	store       QueueStore
	transport   Transport
	interval    time.Duration
	batchSize   int
	maxAttempts int
	logger      *logger.Logger
	now         func() time.Time
}

func NewWorker(store QueueStore, transport Transport, cfg config.PushConfig, log *logger.Logger) *Worker {
	w := &Worker{
		store:       store,
		transport:   transport,
		interval:    cfg.WorkerInterval,
		batchSize:   cfg.WorkerBatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if w.interval <= 0 {
		w.interval = 5 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 20
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 6
	}
	return w
}

// Start runs the poll loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("PUSH", fmt.Sprintf("Queue run failed: %v", err))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("PUSH", "Push worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch and returns how many entries it handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	entries, err := w.store.ClaimDue(ctx, w.batchSize, w.now(), claimLease)
	if err != nil {
		return 0, fmt.Errorf("claim queue entries: %w", err)
	}

	for i := range entries {
		if err := w.deliver(ctx, &entries[i]); err != nil {
			w.logger.Warn("PUSH", fmt.Sprintf("Queue entry %d: %v", entries[i].ID, err))
		}
	}
	return len(entries), nil
}

func buildPayload(entry *models.NotificationQueueEntry) ([]byte, error) {
	tag := string(entry.NotificationType)
	if entry.OrderID != "" {
		tag += "-" + entry.OrderID
	}
	return json.Marshal(models.PushMessage{
		Title: entry.Title,
		Body:  entry.Body,
		Icon:  defaultIcon,
		Badge: defaultBadge,
		URL:   entry.URL,
		Tag:   tag,
	})
}

func (w *Worker) deliver(ctx context.Context, entry *models.NotificationQueueEntry) error {
	payload, err := buildPayload(entry)
	if err != nil {
		return w.fail(ctx, entry, err.Error())
	}

	subs, err := w.store.SubscriptionsByIDs(ctx, entry.TargetIDs)
	if err != nil {
		return w.retry(ctx, entry, entry.TargetIDs, fmt.Sprintf("load subscriptions: %v", err))
	}

	var remaining []string
	var errs []string
	delivered := 0
	for _, sub := range subs {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := w.transport.Send(sendCtx, sub, payload)
		cancel()

		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSubscriptionGone):
			w.logger.LogPush("PRUNED", fmt.Sprintf("subscription %s gone", sub.ID))
			if delErr := w.store.DeleteSubscriptionByID(ctx, sub.ID); delErr != nil {
				w.logger.Warn("PUSH", fmt.Sprintf("Failed to prune subscription %s: %v", sub.ID, delErr))
			}
		default:
			remaining = append(remaining, sub.ID)
			errs = append(errs, err.Error())
		}
	}
	entry.DeliveredCount += delivered

	if len(remaining) == 0 {
		entry.Status = models.QueueStatusSent
		entry.LastError = ""
		entry.UpdatedAt = w.now()
		w.logger.LogPush("SENT", fmt.Sprintf("queue_id=%d delivered=%d", entry.ID, entry.DeliveredCount))
		return w.store.SaveDeliveryState(ctx, entry)
	}
	return w.retry(ctx, entry, remaining, strings.Join(errs, "; "))
}

func (w *Worker) retry(ctx context.Context, entry *models.NotificationQueueEntry, remaining []string, lastErr string) error {
	entry.Attempts++
	if entry.Attempts >= w.maxAttempts {
		return w.fail(ctx, entry, lastErr)
	}

	now := w.now()
	entry.Status = models.QueueStatusPending
	entry.TargetIDs = remaining
	entry.LastError = lastErr
	entry.NextRetry = now.Add(retryDelay(entry.Attempts))
	entry.UpdatedAt = now
	if err := w.store.SaveDeliveryState(ctx, entry); err != nil {
		return fmt.Errorf("update retry: %w", err)
	}
	return fmt.Errorf("attempt %d failed, retrying at %s: %s", entry.Attempts, entry.NextRetry.Format(time.RFC3339), lastErr)
}

func (w *Worker) fail(ctx context.Context, entry *models.NotificationQueueEntry, lastErr string) error {
	entry.Status = models.QueueStatusFailed
	entry.LastError = lastErr
	entry.UpdatedAt = w.now()
	if err := w.store.SaveDeliveryState(ctx, entry); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	w.logger.LogPush("FAILED", fmt.Sprintf("queue_id=%d attempts=%d: %s", entry.ID, entry.Attempts, lastErr))
	return nil
}

// maxBackOffSteps is the first attempt count that reaches the one minute cap.
const maxBackOffSteps = 6

// retryDelay doubles from one second per attempt and caps at one minute.
func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > maxBackOffSteps {
		attempts = maxBackOffSteps
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
