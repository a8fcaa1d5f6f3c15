package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() exchangedomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, source, target string) (*exchangedomain.ExchangeRate, error) {
	var rate exchangedomain.ExchangeRate
	err := db.WithContext(ctx).
		Where("source_currency = ? AND target_currency = ?", source, target).
		First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *exchangedomain.ExchangeRate) error {
	return db.WithContext(ctx).Create(rate).Error
}

func (r *repo) UpdateRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate decimal.Decimal, fetchedAt, attemptAt time.Time) error {
	return db.WithContext(ctx).
		Model(&exchangedomain.ExchangeRate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"rate":            rate,
			"fetched_at":      fetchedAt,
			"last_attempt_at": attemptAt,
			"updated_at":      attemptAt,
		}).Error
}

func (r *repo) TouchAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, attemptAt time.Time) error {
	return db.WithContext(ctx).
		Model(&exchangedomain.ExchangeRate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_attempt_at": attemptAt,
			"updated_at":      attemptAt,
		}).Error
}
