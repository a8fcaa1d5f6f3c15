package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, source, target string) (*ExchangeRate, error)
	Insert(ctx context.Context, db *gorm.DB, rate *ExchangeRate) error
	UpdateRate(ctx context.Context, db *gorm.DB, id snowflake.ID, rate decimal.Decimal, fetchedAt, attemptAt time.Time) error
	TouchAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, attemptAt time.Time) error
}
