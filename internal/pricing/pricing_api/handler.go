package pricing_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"

	"github.com/go-chi/chi/v5"
)

type PricingService interface {
	CurrentRate(ctx context.Context, karat string) (*models.GoldRate, error)
	SetRate(ctx context.Context, karat string, req models.SetGoldRateRequest) (*models.GoldRate, error)
	Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error)
}

type Handler struct {
	Pricing PricingService
	Logger  *logger.Logger
}

func NewHandler(svc PricingService, log *logger.Logger) *Handler {
	return &Handler{Pricing: svc, Logger: log}
}

func (h *Handler) respond(w http.ResponseWriter, op string, v interface{}, err error) {
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		_ = utils.WriteError(w, utils.HTTPStatus(err), utils.PublicError(err))
		return
	}
	if encErr := utils.WriteJSON(w, http.StatusOK, v); encErr != nil {
		h.Logger.Error("API", fmt.Sprintf("%s: failed to encode response: %v", op, encErr))
	}
}

func (h *Handler) GetGoldRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.Pricing.CurrentRate(r.Context(), chi.URLParam(r, "karat"))
	h.respond(w, "GetGoldRate", rate, err)
}

func (h *Handler) SetGoldRate(w http.ResponseWriter, r *http.Request) {
	var req models.SetGoldRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rate, err := h.Pricing.SetRate(r.Context(), chi.URLParam(r, "karat"), req)
	h.respond(w, "SetGoldRate", rate, err)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	quote, err := h.Pricing.Quote(r.Context(), req)
	h.respond(w, "Quote", quote, err)
}

// ValidatePincode reports whether the path value is a deliverable Indian
// PIN code format.
func (h *Handler) ValidatePincode(w http.ResponseWriter, r *http.Request) {
	pincode := chi.URLParam(r, "pincode")
	h.respond(w, "ValidatePincode", map[string]interface{}{
		"pincode": pincode,
		"valid":   utils.IsValidPincode(pincode),
	}, nil)
}
