package push

import (
	"context"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Store keeps subscriptions and the notification queue.
type Store struct {
	Bun *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{Bun: db}
}

// ---------------- SUBSCRIPTIONS ----------------

// UpsertSubscription inserts or refreshes the subscription for
// (user_id, endpoint).
func (s *Store) UpsertSubscription(ctx context.Context, sub *models.PushSubscription) error {
	_, err := s.Bun.NewInsert().
		Model(sub).
		On("CONFLICT (user_id, endpoint) DO UPDATE").
		Set("p256dh = EXCLUDED.p256dh").
		Set("auth = EXCLUDED.auth").
		Set("order_updates = EXCLUDED.order_updates").
		Set("promo_alerts = EXCLUDED.promo_alerts").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return apperror.Persistence("Failed to save subscription", err)
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, userID, endpoint string) (int64, error) {
	res, err := s.Bun.NewDelete().
		Model((*models.PushSubscription)(nil)).
		Where("user_id = ?", userID).
		Where("endpoint = ?", endpoint).
		Exec(ctx)
	if err != nil {
		return 0, apperror.Persistence("Failed to delete subscription", err)
	}
	return res.RowsAffected()
}

func (s *Store) DeleteSubscriptionByID(ctx context.Context, id string) error {
	_, err := s.Bun.NewDelete().
		Model((*models.PushSubscription)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MatchingSubscriptions selects the subscriptions a notification targets:
// order updates go to opted-in subscriptions (of one user when given),
// promos to every promo opt-in.
func (s *Store) MatchingSubscriptions(ctx context.Context, n models.PushNotificationRequest) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	q := s.Bun.NewSelect().Model(&subs)

	switch n.NotificationType {
	case models.NotificationOrderUpdate:
		q = q.Where("ps.order_updates = ?", true)
		if n.UserID != "" {
			q = q.Where("ps.user_id = ?", n.UserID)
		}
	case models.NotificationPromo:
		q = q.Where("ps.promo_alerts = ?", true)
	default:
		return nil, apperror.Validation("Invalid notification type")
	}

	if err := q.OrderExpr("ps.created_at ASC").Scan(ctx); err != nil {
		return nil, apperror.Persistence("Failed to load subscriptions", err)
	}
	return subs, nil
}

func (s *Store) SubscriptionsByIDs(ctx context.Context, ids []string) ([]models.PushSubscription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var subs []models.PushSubscription
	err := s.Bun.NewSelect().
		Model(&subs).
		Where("ps.id IN (?)", bun.In(ids)).
		Scan(ctx)
	return subs, err
}

// ---------------- QUEUE ----------------

func (s *Store) EnqueueNotification(ctx context.Context, entry *models.NotificationQueueEntry) error {
	if _, err := s.Bun.NewInsert().Model(entry).Exec(ctx); err != nil {
		return apperror.Persistence("Failed to queue notification", err)
	}
	return nil
}

// ClaimDue leases up to batch due entries by moving them to processing
// until now+lease. Entries whose lease ran out are claimed again.
func (s *Store) ClaimDue(ctx context.Context, batch int, now time.Time, lease time.Duration) ([]models.NotificationQueueEntry, error) {
	var entries []models.NotificationQueueEntry

	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&entries).
			Where("nq.status IN (?)", bun.In([]models.QueueStatus{models.QueueStatusPending, models.QueueStatusProcessing})).
			Where("nq.next_retry <= ?", now).
			OrderExpr("nq.id ASC").
			Limit(batch)
		if s.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE SKIP LOCKED")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		ids := make([]int64, len(entries))
		for i := range entries {
			ids[i] = entries[i].ID
		}
		_, err := tx.NewUpdate().
			Model((*models.NotificationQueueEntry)(nil)).
			Set("status = ?", models.QueueStatusProcessing).
			Set("next_retry = ?", now.Add(lease)).
			Set("updated_at = ?", now).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveDeliveryState persists the outcome of one delivery round.
func (s *Store) SaveDeliveryState(ctx context.Context, entry *models.NotificationQueueEntry) error {
	_, err := s.Bun.NewUpdate().
		Model(entry).
		Column("status", "attempts", "delivered_count", "next_retry", "last_error", "target_ids", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

type StatusCount struct {
	Status models.QueueStatus `bun:"status"`
	Count  int                `bun:"count"`
}

func (s *Store) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := s.Bun.NewSelect().
		Model((*models.NotificationQueueEntry)(nil)).
		ColumnExpr("nq.status AS status").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("nq.status").
		OrderExpr("nq.status ASC").
		Scan(ctx, &counts)
	return counts, err
}
