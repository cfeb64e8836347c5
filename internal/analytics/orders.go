package analytics

import (
	"context"
	"strings"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"
)

// OrderSortField defines the valid fields for sorting orders
type OrderSortField string

const (
	OrderSortByTotal     OrderSortField = "total_amount"
	OrderSortByCreatedAt OrderSortField = "created_at"
)

// OrderListOptions contains options for filtering and sorting orders
type OrderListOptions struct {
	Status   string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

const maxOrderPage = 200

// ListOrders returns orders with optional filters, newest first by default
func (s *Service) ListOrders(ctx context.Context, options OrderListOptions) ([]models.Order, error) {
	q := s.db.NewSelect().Model((*models.Order)(nil))

	if options.Status != "" {
		q = q.Where("o.status = ?", options.Status)
	}

	direction := "DESC"
	if options.SortBy != "" && !options.SortDesc {
		direction = "ASC"
	}
	switch OrderSortField(strings.ToLower(options.SortBy)) {
	case OrderSortByTotal:
		q = q.Order("o.total_amount " + direction)
	default:
		// unknown fields fall back to created_at
		q = q.Order("o.created_at " + direction)
	}

	limit := options.Limit
	if limit <= 0 || limit > maxOrderPage {
		limit = 50
	}
	q = q.Limit(limit)
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	orders := []models.Order{}
	if err := q.Scan(ctx, &orders); err != nil {
		return nil, apperror.Persistence("Failed to list orders", err)
	}
	return orders, nil
}
