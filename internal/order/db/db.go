package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateGuestOrder inserts the order and its items in one transaction.
// Either both land or neither does.
func (d *DB) CreateGuestOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return apperror.Wrap(apperror.KindConflict, "Order number already exists", err)
			}
			return apperror.Persistence("Failed to create order", err)
		}
		if len(items) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return apperror.Persistence("Failed to create order items", err)
		}
		return nil
	})
}

// ConfirmPayment moves a pending order to confirmed. It reports whether a
// transition happened: re-confirming with the same payment id is a no-op,
// a different payment id on a confirmed order is a conflict.
func (d *DB) ConfirmPayment(ctx context.Context, orderID, paymentID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("payment_method = ?", models.PaymentMethodRazorpay).
		Set("payment_id = ?", paymentID).
		Set("status = ?", models.OrderStatusConfirmed).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", orderID).
		Where("status = ?", models.OrderStatusPending).
		Exec(ctx)
	if err != nil {
		return false, apperror.Persistence("Failed to update order", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}

	current, err := d.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if current.Status == models.OrderStatusConfirmed && current.PaymentID == paymentID {
		return false, nil
	}
	return false, apperror.Conflict("Order already confirmed with a different payment")
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "Order not found")
	}
	return &order, nil
}

// GetOrderWithItems loads the order together with its item snapshots.
func (d *DB) GetOrderWithItems(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Relation("Items").
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "Order not found")
	}
	return &order, nil
}

func (d *DB) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.order_number = ?", orderNumber).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "Order not found")
	}
	return &order, nil
}

// ListRecentOrders returns the newest orders first.
func (d *DB) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Order("o.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.Persistence("Failed to list orders", err)
	}
	return orders, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.Wrap(apperror.KindNotFound, msg, err)
	}
	return apperror.Persistence("Failed to load order", err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
