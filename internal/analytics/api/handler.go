package analytics_api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-storefront/internal/analytics"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type AnalyticsService interface {
	GetSalesSummary(ctx context.Context, from, to time.Time) (*analytics.SalesSummary, error)
	ListOrders(ctx context.Context, options analytics.OrderListOptions) ([]models.Order, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service AnalyticsService
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service AnalyticsService, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the analytics routes under /admin/analytics on
// the /api router. The caller mounts auth in front of it.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/analytics", func(r chi.Router) {
		r.Get("/sales", h.GetSalesSummary)
		r.Get("/orders", h.ListOrders)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, status int, err error) {
	h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
	_ = utils.WriteError(w, status, utils.PublicError(err))
}

// GetSalesSummary handles GET /api/admin/analytics/sales?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Without parameters it covers the last 30 days; "to" is inclusive.
func (h *Handler) GetSalesSummary(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -29)
	to := today

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			_ = utils.WriteError(w, http.StatusBadRequest, "Invalid 'from' date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			_ = utils.WriteError(w, http.StatusBadRequest, "Invalid 'to' date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	summary, err := h.Service.GetSalesSummary(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		h.fail(w, "GetSalesSummary", utils.HTTPStatus(err), err)
		return
	}
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Sales summary %s..%s: %d orders", from.Format("2006-01-02"), to.Format("2006-01-02"), summary.TotalOrders))
	_ = utils.WriteJSON(w, http.StatusOK, summary)
}

// ListOrders handles GET /api/admin/analytics/orders with optional
// status, sort_by, sort_order, limit and offset parameters.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := analytics.OrderListOptions{
		Status:   q.Get("status"),
		SortBy:   q.Get("sort_by"),
		SortDesc: q.Get("sort_order") != "asc",
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			_ = utils.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			_ = utils.WriteError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = offset
	}

	orders, err := h.Service.ListOrders(r.Context(), opts)
	if err != nil {
		h.fail(w, "ListOrders", utils.HTTPStatus(err), err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, orders)
}
