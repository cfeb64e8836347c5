package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"

	"github.com/shopspring/decimal"
)

type RateStore interface {
	LatestRate(ctx context.Context, karat string) (*models.GoldRate, error)
	InsertRate(ctx context.Context, rate *models.GoldRate) error
}

type Cache interface {
	Get(ctx context.Context, karat string) (*models.GoldRate, error)
	Set(ctx context.Context, rate *models.GoldRate) error
}

type Service struct {
	store        RateStore
	cache        Cache // nil disables caching
	gstRate      decimal.Decimal
	defaultKarat string
	logger       *logger.Logger
}

func NewService(store RateStore, cache Cache, checkout config.CheckoutConfig, cfg config.PricingConfig, log *logger.Logger) *Service {
	karat := cfg.DefaultKarat
	if karat == "" {
		karat = "22K"
	}
	return &Service{
		store:        store,
		cache:        cache,
		gstRate:      checkout.GSTRate,
		defaultKarat: karat,
		logger:       log,
	}
}

func normalizeKarat(karat string) string {
	return strings.ToUpper(strings.TrimSpace(karat))
}

// CurrentRate reads through the cache. Cache failures fall back to the
// database.
func (s *Service) CurrentRate(ctx context.Context, karat string) (*models.GoldRate, error) {
	karat = normalizeKarat(karat)
	if karat == "" {
		karat = s.defaultKarat
	}

	if s.cache != nil {
		rate, err := s.cache.Get(ctx, karat)
		if err != nil {
			s.logger.Warn("REDIS", err.Error())
		} else if rate != nil {
			return rate, nil
		}
	}

	rate, err := s.store.LatestRate(ctx, karat)
	if err != nil {
		return nil, err
	}
	s.cacheRate(ctx, rate)
	return rate, nil
}

func (s *Service) SetRate(ctx context.Context, karat string, req models.SetGoldRateRequest) (*models.GoldRate, error) {
	karat = normalizeKarat(karat)
	if karat == "" {
		return nil, apperror.Validation("Karat is required")
	}
	if !req.RatePerGram.IsPositive() {
		return nil, apperror.Validation("rate_per_gram must be positive")
	}

	rate := &models.GoldRate{
		Karat:       karat,
		RatePerGram: req.RatePerGram.Round(2),
		EffectiveAt: time.Now().UTC(),
	}
	if err := s.store.InsertRate(ctx, rate); err != nil {
		return nil, err
	}
	s.logger.Info("PRICING", fmt.Sprintf("Gold rate %s set to %s/g", karat, rate.RatePerGram.StringFixed(2)))
	s.cacheRate(ctx, rate)
	return rate, nil
}

func (s *Service) cacheRate(ctx context.Context, rate *models.GoldRate) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rate); err != nil {
		s.logger.Warn("REDIS", fmt.Sprintf("Failed to cache gold rate %s: %v", rate.Karat, err))
	}
}

// Quote prices items at the current gold rate. Amounts are rounded to
// paise per line, GST on the subtotal.
func (s *Service) Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error) {
	if len(req.Items) == 0 {
		return nil, apperror.Validation("Quote must contain at least one item")
	}

	rates := map[string]decimal.Decimal{}
	quote := &models.Quote{Lines: make([]models.QuoteLine, 0, len(req.Items))}
	subtotal := decimal.Zero

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperror.Validation(fmt.Sprintf("Item %d has invalid quantity", i+1))
		}
		weight := item.WeightGrams.Add(item.VariationWeightDelta)
		if weight.IsNegative() {
			return nil, apperror.Validation(fmt.Sprintf("Item %d has invalid weight", i+1))
		}

		karat := normalizeKarat(item.Karat)
		if karat == "" {
			karat = s.defaultKarat
		}
		rate, ok := rates[karat]
		if !ok {
			gr, err := s.CurrentRate(ctx, karat)
			if err != nil {
				return nil, err
			}
			rate = gr.RatePerGram
			rates[karat] = rate
		}

		line := PriceItem(item, rate)
		quote.Lines = append(quote.Lines, line)
		subtotal = subtotal.Add(line.TotalPrice)
	}

	quote.Subtotal = subtotal
	quote.GSTAmount = subtotal.Mul(s.gstRate).Round(2)
	quote.Total = subtotal.Add(quote.GSTAmount)
	return quote, nil
}

// PriceItem computes one line: metal value from the effective weight, plus
// making, diamond, stone and variation charges, times quantity.
func PriceItem(item models.QuoteItem, rate decimal.Decimal) models.QuoteLine {
	weight := item.WeightGrams.Add(item.VariationWeightDelta)
	metal := weight.Mul(rate).Round(2)
	unit := metal.
		Add(item.MakingCharges).
		Add(item.DiamondCost).
		Add(item.StoneCost).
		Add(item.VariationPriceDelta).
		Round(2)

	return models.QuoteLine{
		ProductID:       item.ProductID,
		Quantity:        item.Quantity,
		GoldRateApplied: rate,
		MetalValue:      metal,
		UnitPrice:       unit,
		TotalPrice:      unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}
}
