package push

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-storefront/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestStore(t *testing.T) (*Store, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range []interface{}{(*models.PushSubscription)(nil), (*models.NotificationQueueEntry)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return NewStore(bunDB), bunDB
}

func addSubscription(t *testing.T, s *Store, userID, endpoint string, orderUpdates, promo bool) *models.PushSubscription {
	t.Helper()
	now := time.Now().UTC()
	sub := &models.PushSubscription{
		ID:           uuid.New().String(),
		UserID:       userID,
		Endpoint:     endpoint,
		P256dh:       "p256dh-key",
		Auth:         "auth-key",
		OrderUpdates: orderUpdates,
		PromoAlerts:  promo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.UpsertSubscription(context.Background(), sub))
	return sub
}

func TestUpsertSubscriptionUpdatesExisting(t *testing.T) {
	s, bunDB := setupTestStore(t)
	ctx := context.Background()

	addSubscription(t, s, "user-1", "https://push.example/a", true, true)
	addSubscription(t, s, "user-1", "https://push.example/a", false, true)

	count, err := bunDB.NewSelect().Model((*models.PushSubscription)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var got models.PushSubscription
	require.NoError(t, bunDB.NewSelect().Model(&got).Where("user_id = ?", "user-1").Scan(ctx))
	assert.False(t, got.OrderUpdates)
	assert.True(t, got.PromoAlerts)
}

func TestDeleteSubscription(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	addSubscription(t, s, "user-1", "https://push.example/a", true, true)

	n, err := s.DeleteSubscription(ctx, "user-2", "https://push.example/a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "another user's endpoint is untouched")

	n, err = s.DeleteSubscription(ctx, "user-1", "https://push.example/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMatchingSubscriptions(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	a := addSubscription(t, s, "user-1", "https://push.example/a", true, false)
	addSubscription(t, s, "user-1", "https://push.example/b", false, true)
	c := addSubscription(t, s, "user-2", "https://push.example/c", true, true)

	subs, err := s.MatchingSubscriptions(ctx, models.PushNotificationRequest{NotificationType: models.NotificationOrderUpdate, UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, a.ID, subs[0].ID)

	subs, err = s.MatchingSubscriptions(ctx, models.PushNotificationRequest{NotificationType: models.NotificationOrderUpdate})
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = s.MatchingSubscriptions(ctx, models.PushNotificationRequest{NotificationType: models.NotificationPromo})
	require.NoError(t, err)
	ids := []string{subs[0].ID, subs[1].ID}
	assert.Contains(t, ids, c.ID)
	assert.Len(t, subs, 2)

	_, err = s.MatchingSubscriptions(ctx, models.PushNotificationRequest{NotificationType: "sms"})
	assert.Error(t, err)
}

func enqueue(t *testing.T, s *Store, nextRetry time.Time, targets ...string) *models.NotificationQueueEntry {
	t.Helper()
	entry := &models.NotificationQueueEntry{
		Title:            "Order confirmed",
		Body:             "Your order KRT-1001 is confirmed.",
		NotificationType: models.NotificationOrderUpdate,
		TargetIDs:        targets,
		Status:           models.QueueStatusPending,
		NextRetry:        nextRetry,
		CreatedAt:        nextRetry,
		UpdatedAt:        nextRetry,
	}
	require.NoError(t, s.EnqueueNotification(context.Background(), entry))
	require.NotZero(t, entry.ID)
	return entry
}

func TestClaimDueLeasesEntries(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	due := enqueue(t, s, now.Add(-time.Minute), "sub-1")
	enqueue(t, s, now.Add(time.Hour), "sub-2")

	claimed, err := s.ClaimDue(ctx, 10, now, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, []string{"sub-1"}, claimed[0].TargetIDs)

	// leased: not claimable again until the lease runs out
	claimed, err = s.ClaimDue(ctx, 10, now.Add(10*time.Second), 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = s.ClaimDue(ctx, 10, now.Add(31*time.Second), 30*time.Second)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestCountByStatus(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, s, now, "sub-1")
	failed := enqueue(t, s, now, "sub-2")
	failed.Status = models.QueueStatusFailed
	require.NoError(t, s.SaveDeliveryState(ctx, failed))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, StatusCount{Status: models.QueueStatusFailed, Count: 1}, counts[0])
	assert.Equal(t, StatusCount{Status: models.QueueStatusPending, Count: 1}, counts[1])
}
