package pricing

import (
	"context"
	"database/sql"
	"errors"

	"ms-storefront/internal/apperror"
	"ms-storefront/internal/models"

	"github.com/uptrace/bun"
)

// Store keeps the gold rate history. The newest effective row per karat is
// the current rate.
type Store struct {
	Bun *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{Bun: db}
}

func (s *Store) LatestRate(ctx context.Context, karat string) (*models.GoldRate, error) {
	var rate models.GoldRate
	err := s.Bun.NewSelect().
		Model(&rate).
		Where("gr.karat = ?", karat).
		OrderExpr("gr.effective_at DESC, gr.id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("No gold rate for " + karat)
	}
	if err != nil {
		return nil, apperror.Persistence("Failed to load gold rate", err)
	}
	return &rate, nil
}

func (s *Store) InsertRate(ctx context.Context, rate *models.GoldRate) error {
	if _, err := s.Bun.NewInsert().Model(rate).Exec(ctx); err != nil {
		return apperror.Persistence("Failed to save gold rate", err)
	}
	return nil
}
