package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers per endpoint and records what it was sent.
type fakeTransport struct {
	mu       sync.Mutex
	results  map[string]error
	payloads [][]byte
}

func (f *fakeTransport) Send(_ context.Context, sub models.PushSubscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return f.results[sub.Endpoint]
}

func newTestWorker(s *Store, tr Transport, now time.Time) *Worker {
	w := NewWorker(s, tr, config.PushConfig{MaxAttempts: 3, WorkerBatchSize: 10}, logger.NewNop())
	w.now = func() time.Time { return now }
	return w
}

func reload(t *testing.T, s *Store, id int64) models.NotificationQueueEntry {
	t.Helper()
	var entry models.NotificationQueueEntry
	require.NoError(t, s.Bun.NewSelect().Model(&entry).Where("nq.id = ?", id).Scan(context.Background()))
	return entry
}

func TestWorkerDeliversAll(t *testing.T) {
	s, _ := setupTestStore(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a := addSubscription(t, s, "user-1", "https://push.example/a", true, true)
	b := addSubscription(t, s, "user-2", "https://push.example/b", true, true)
	entry := enqueue(t, s, now, a.ID, b.ID)

	tr := &fakeTransport{results: map[string]error{}}
	n, err := newTestWorker(s, tr, now).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := reload(t, s, entry.ID)
	assert.Equal(t, models.QueueStatusSent, got.Status)
	assert.Equal(t, 2, got.DeliveredCount)
	assert.Len(t, tr.payloads, 2)
	assert.Contains(t, string(tr.payloads[0]), `"tag":"order_update"`)
	assert.Contains(t, string(tr.payloads[0]), `"icon":"/icons/icon-192x192.png"`)
}

func TestWorkerRetriesOnlyFailedTargets(t *testing.T) {
	s, _ := setupTestStore(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a := addSubscription(t, s, "user-1", "https://push.example/a", true, true)
	b := addSubscription(t, s, "user-2", "https://push.example/b", true, true)
	entry := enqueue(t, s, now, a.ID, b.ID)

	tr := &fakeTransport{results: map[string]error{
		"https://push.example/b": errors.New("push service returned 500"),
	}}
	_, err := newTestWorker(s, tr, now).RunOnce(context.Background())
	require.NoError(t, err)

	got := reload(t, s, entry.ID)
	assert.Equal(t, models.QueueStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, 1, got.DeliveredCount)
	assert.Equal(t, []string{b.ID}, got.TargetIDs)
	assert.Contains(t, got.LastError, "500")
	assert.True(t, got.NextRetry.Equal(now.Add(2*time.Second)), "next retry %s", got.NextRetry)

	// not due yet
	n, err := newTestWorker(s, tr, now.Add(time.Second)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWorkerMarksFailedAtMaxAttempts(t *testing.T) {
	s, _ := setupTestStore(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a := addSubscription(t, s, "user-1", "https://push.example/a", true, true)
	entry := enqueue(t, s, now, a.ID)

	tr := &fakeTransport{results: map[string]error{
		"https://push.example/a": errors.New("connection refused"),
	}}
	for i := 0; i < 3; i++ {
		current := reload(t, s, entry.ID)
		w := newTestWorker(s, tr, current.NextRetry)
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
	}

	got := reload(t, s, entry.ID)
	assert.Equal(t, models.QueueStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Contains(t, got.LastError, "connection refused")

	n, err := newTestWorker(s, tr, now.Add(time.Hour)).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "failed entries are never claimed")
}

func TestWorkerPrunesGoneSubscriptions(t *testing.T) {
	s, bunDB := setupTestStore(t)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a := addSubscription(t, s, "user-1", "https://push.example/a", true, true)
	entry := enqueue(t, s, now, a.ID)

	tr := &fakeTransport{results: map[string]error{
		"https://push.example/a": ErrSubscriptionGone,
	}}
	_, err := newTestWorker(s, tr, now).RunOnce(context.Background())
	require.NoError(t, err)

	got := reload(t, s, entry.ID)
	assert.Equal(t, models.QueueStatusSent, got.Status)
	assert.Equal(t, 0, got.DeliveredCount)

	count, err := bunDB.NewSelect().Model((*models.PushSubscription)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(0))
	assert.Equal(t, 2*time.Second, retryDelay(1))
	assert.Equal(t, 32*time.Second, retryDelay(5))
	assert.Equal(t, time.Minute, retryDelay(6))
	assert.Equal(t, time.Minute, retryDelay(40))
	assert.Equal(t, time.Second, retryDelay(-1))

	for attempts := 1; attempts <= maxBackOffSteps; attempts++ {
		assert.GreaterOrEqual(t, retryDelay(attempts), retryDelay(attempts-1), "attempts=%d", attempts)
	}
}
