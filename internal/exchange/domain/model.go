// Package domain contains the persistence model for cached conversion rates.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	DefaultSourceCurrency = "ZAR"
	DefaultTargetCurrency = "USD"
)

// ExchangeRate caches a single conversion rate per currency pair. Rows are
// created lazily with a fallback rate and refreshed in place, never deleted.
type ExchangeRate struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	SourceCurrency string          `json:"source_currency" gorm:"type:text;not null"`
	TargetCurrency string          `json:"target_currency" gorm:"type:text;not null"`
	Rate           decimal.Decimal `json:"rate" gorm:"type:numeric(16,8);not null"`
	FetchedAt      time.Time       `json:"fetched_at" gorm:"not null"`
	LastAttemptAt  time.Time       `json:"last_attempt_at" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ExchangeRate) TableName() string { return "exchange_rates" }

// RateInfo is the caller-facing view of a cached rate.
type RateInfo struct {
	Rate           decimal.Decimal
	FetchedAt      time.Time
	SourceCurrency string
	TargetCurrency string
}

// ErrFetchFailed wraps any network or parse failure while refreshing a rate.
// The cache keeps serving the previous value when it occurs.
var ErrFetchFailed = errors.New("exchange rate fetch failed")

// Fetcher retrieves the current rate from the upstream rate API.
type Fetcher interface {
	Fetch(ctx context.Context) (RateInfo, error)
}

type Service interface {
	// GetOrRefresh returns the cached rate, refreshing it when stale. It
	// never blocks the caller on upstream failure; the previous value is
	// returned instead.
	GetOrRefresh(ctx context.Context, force bool) (RateInfo, error)
}
