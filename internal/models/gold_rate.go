package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type GoldRate struct {
	bun.BaseModel `bun:"table:gold_rates,alias:gr"`

	ID          int64           `bun:"id,pk,autoincrement" json:"id"`
	Karat       string          `bun:"karat,notnull" json:"karat"`
	RatePerGram decimal.Decimal `bun:"rate_per_gram,type:numeric(12,2),notnull" json:"rate_per_gram"`
	EffectiveAt time.Time       `bun:"effective_at,notnull" json:"effective_at"`
}

type SetGoldRateRequest struct {
	RatePerGram decimal.Decimal `json:"rate_per_gram"`
}

type QuoteItem struct {
	ProductID            string          `json:"product_id,omitempty"`
	Quantity             int             `json:"quantity"`
	WeightGrams          decimal.Decimal `json:"weight_grams"`
	Karat                string          `json:"karat,omitempty"`
	MakingCharges        decimal.Decimal `json:"making_charges"`
	DiamondCost          decimal.Decimal `json:"diamond_cost"`
	StoneCost            decimal.Decimal `json:"stone_cost"`
	VariationPriceDelta  decimal.Decimal `json:"variation_price_delta"`
	VariationWeightDelta decimal.Decimal `json:"variation_weight_delta"`
}

type QuoteRequest struct {
	Items []QuoteItem `json:"items"`
}

type QuoteLine struct {
	ProductID       string          `json:"product_id,omitempty"`
	Quantity        int             `json:"quantity"`
	GoldRateApplied decimal.Decimal `json:"gold_rate_applied"`
	MetalValue      decimal.Decimal `json:"metal_value"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

type Quote struct {
	Lines     []QuoteLine     `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	GSTAmount decimal.Decimal `json:"gst_amount"`
	Total     decimal.Decimal `json:"total_amount"`
}
