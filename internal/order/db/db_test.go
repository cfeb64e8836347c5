package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T, withItems bool) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// every pooled connection would get its own empty :memory: database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.NewCreateTable().Model((*models.Order)(nil)).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to create orders table: %v", err)
	}

	if withItems {
		_, err = bunDB.NewCreateTable().Model((*models.OrderItem)(nil)).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create order_items table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return &db.DB{Bun: bunDB}, bunDB
}

func newOrder(number string, status models.OrderStatus) *models.Order {
	now := time.Now().UTC()
	return &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     number,
		Status:          status,
		Subtotal:        decimal.NewFromInt(48544),
		GSTAmount:       decimal.RequireFromString("1456.32"),
		TotalAmount:     decimal.RequireFromString("50000.32"),
		GoldRateAtOrder: decimal.NewFromInt(6200),
		ShippingAddress: &models.ShippingAddress{
			FullName:     "Asha Rao",
			Phone:        "9876543210",
			AddressLine1: "12 MG Road",
			City:         "Bengaluru",
			State:        "KA",
			Pincode:      "560001",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newItem(orderID string) models.OrderItem {
	return models.OrderItem{
		ID:              uuid.New().String(),
		OrderID:         orderID,
		ProductID:       "p1",
		ProductName:     "Kundan Necklace",
		Quantity:        1,
		WeightGrams:     decimal.RequireFromString("5.5"),
		GoldRateApplied: decimal.NewFromInt(6200),
		MakingCharges:   decimal.NewFromInt(2000),
		UnitPrice:       decimal.NewFromInt(36100),
		TotalPrice:      decimal.NewFromInt(36100),
		VariationChoices: map[string]string{
			"size": "18in",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateGuestOrderWithItems(t *testing.T) {
	orderDB, bunDB := setupTestDB(t, true)
	ctx := context.Background()

	order := newOrder("ORD-1001", models.OrderStatusPending)
	items := []models.OrderItem{newItem(order.ID), newItem(order.ID)}

	err := orderDB.CreateGuestOrder(ctx, order, items)
	require.NoError(t, err)

	got, err := orderDB.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1001", got.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Empty(t, got.UserID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("50000.32")))
	require.NotNil(t, got.ShippingAddress)
	assert.Equal(t, "560001", got.ShippingAddress.Pincode)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, "18in", got.Items[0].VariationChoices["size"])

	count, err := bunDB.NewSelect().Model((*models.OrderItem)(nil)).Where("order_id = ?", order.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCreateGuestOrderWithoutItems(t *testing.T) {
	orderDB, _ := setupTestDB(t, true)
	ctx := context.Background()

	order := newOrder("ORD-EMPTY", models.OrderStatusPending)
	require.NoError(t, orderDB.CreateGuestOrder(ctx, order, nil))

	got, err := orderDB.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestCreateGuestOrderRollsBackWhenItemsFail(t *testing.T) {
	// no order_items table: the item insert fails inside the transaction
	orderDB, bunDB := setupTestDB(t, false)
	ctx := context.Background()

	order := newOrder("ORD-ATOMIC", models.OrderStatusPending)
	err := orderDB.CreateGuestOrder(ctx, order, []models.OrderItem{newItem(order.ID)})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPersistence))
	assert.Equal(t, "Failed to create order items", apperror.PublicMessage(err))

	count, err := bunDB.NewSelect().Model((*models.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "order row must not survive a failed item insert")
}

func TestCreateGuestOrderDuplicateNumber(t *testing.T) {
	orderDB, _ := setupTestDB(t, true)
	ctx := context.Background()

	require.NoError(t, orderDB.CreateGuestOrder(ctx, newOrder("ORD-DUP", models.OrderStatusPending), nil))

	err := orderDB.CreateGuestOrder(ctx, newOrder("ORD-DUP", models.OrderStatusPending), nil)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestConfirmPayment(t *testing.T) {
	orderDB, _ := setupTestDB(t, true)
	ctx := context.Background()

	order := newOrder("ORD-PAY", models.OrderStatusPending)
	require.NoError(t, orderDB.CreateGuestOrder(ctx, order, nil))

	changed, err := orderDB.ConfirmPayment(ctx, order.ID, "pay_123")
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := orderDB.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.Equal(t, "pay_123", got.PaymentID)
	assert.Equal(t, models.PaymentMethodRazorpay, got.PaymentMethod)

	// same payment again is a no-op
	changed, err = orderDB.ConfirmPayment(ctx, order.ID, "pay_123")
	require.NoError(t, err)
	assert.False(t, changed)

	// a different payment cannot overwrite the confirmed one
	_, err = orderDB.ConfirmPayment(ctx, order.ID, "pay_999")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	got, err = orderDB.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_123", got.PaymentID)
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	orderDB, _ := setupTestDB(t, true)

	_, err := orderDB.ConfirmPayment(context.Background(), uuid.New().String(), "pay_1")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestGetOrderByNumberAndListRecent(t *testing.T) {
	orderDB, _ := setupTestDB(t, true)
	ctx := context.Background()

	older := newOrder("ORD-OLD", models.OrderStatusPending)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newOrder("ORD-NEW", models.OrderStatusConfirmed)
	require.NoError(t, orderDB.CreateGuestOrder(ctx, older, nil))
	require.NoError(t, orderDB.CreateGuestOrder(ctx, newer, nil))

	got, err := orderDB.GetOrderByNumber(ctx, "ORD-OLD")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)

	_, err = orderDB.GetOrderByNumber(ctx, "ORD-MISSING")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	orders, err := orderDB.ListRecentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD-NEW", orders[0].OrderNumber)
}
