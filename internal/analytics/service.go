package analytics

import (
	"context"
	"sort"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Service handles analytics operations
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// DailySalesMetrics contains metrics for a single day
type DailySalesMetrics struct {
	Date            string          `json:"date"`
	Orders          int             `json:"orders"`
	ConfirmedOrders int             `json:"confirmed_orders"`
	Revenue         decimal.Decimal `json:"revenue"`
	GSTCollected    decimal.Decimal `json:"gst_collected"`
	AvgGoldRate     decimal.Decimal `json:"avg_gold_rate"`
}

// SalesSummary aggregates orders created in [From, To). Revenue and GST
// count confirmed orders only.
type SalesSummary struct {
	From            time.Time           `json:"from"`
	To              time.Time           `json:"to"`
	TotalOrders     int                 `json:"total_orders"`
	ConfirmedOrders int                 `json:"confirmed_orders"`
	TotalRevenue    decimal.Decimal     `json:"total_revenue"`
	TotalGST        decimal.Decimal     `json:"total_gst"`
	DailySales      []DailySalesMetrics `json:"daily_sales"`
}

type dailyAcc struct {
	metrics DailySalesMetrics
	rateSum decimal.Decimal
}

// GetSalesSummary returns per-day sales between from and to. Days are UTC.
func (s *Service) GetSalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	if !to.After(from) {
		return nil, apperror.Validation("'to' must be after 'from'")
	}

	var orders []models.Order
	err := s.db.NewSelect().
		Model(&orders).
		Column("id", "status", "total_amount", "gst_amount", "gold_rate_at_order", "created_at").
		Where("o.created_at >= ?", from.UTC()).
		Where("o.created_at < ?", to.UTC()).
		Scan(ctx)
	if err != nil {
		return nil, apperror.Persistence("Failed to load orders", err)
	}

	summary := &SalesSummary{
		From:         from.UTC(),
		To:           to.UTC(),
		TotalRevenue: decimal.Zero,
		TotalGST:     decimal.Zero,
		DailySales:   []DailySalesMetrics{},
	}

	days := map[string]*dailyAcc{}
	for _, o := range orders {
		day := o.CreatedAt.UTC().Format("2006-01-02")
		acc, ok := days[day]
		if !ok {
			acc = &dailyAcc{metrics: DailySalesMetrics{Date: day, Revenue: decimal.Zero, GSTCollected: decimal.Zero}, rateSum: decimal.Zero}
			days[day] = acc
		}

		acc.metrics.Orders++
		acc.rateSum = acc.rateSum.Add(o.GoldRateAtOrder)
		summary.TotalOrders++

		if o.Status != models.OrderStatusConfirmed {
			continue
		}
		acc.metrics.ConfirmedOrders++
		acc.metrics.Revenue = acc.metrics.Revenue.Add(o.TotalAmount)
		acc.metrics.GSTCollected = acc.metrics.GSTCollected.Add(o.GSTAmount)
		summary.ConfirmedOrders++
		summary.TotalRevenue = summary.TotalRevenue.Add(o.TotalAmount)
		summary.TotalGST = summary.TotalGST.Add(o.GSTAmount)
	}

	for _, acc := range days {
		acc.metrics.AvgGoldRate = acc.rateSum.Div(decimal.NewFromInt(int64(acc.metrics.Orders))).Round(2)
		summary.DailySales = append(summary.DailySales, acc.metrics)
	}
	sort.Slice(summary.DailySales, func(i, j int) bool {
		return summary.DailySales[i].Date < summary.DailySales[j].Date
	})

	return summary, nil
}
