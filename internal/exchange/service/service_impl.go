package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	obsmetrics "github.com/stokvelhq/patron/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// StaleInterval is the age after which a cached rate triggers a refresh.
	StaleInterval = 24 * time.Hour
	// RetryInterval bounds how often refresh attempts hit the upstream API.
	RetryInterval = 10 * time.Minute
)

var defaultFallbackRate = decimal.RequireFromString("0.05")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    exchangedomain.Repository
	Fetcher exchangedomain.Fetcher
	Cfg     config.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     exchangedomain.Repository
	fetcher  exchangedomain.Fetcher
	fallback decimal.Decimal
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) exchangedomain.Service {
	fallback, err := decimal.NewFromString(p.Cfg.Exchange.FallbackRate)
	if err != nil || !fallback.IsPositive() {
		p.Log.Warn("invalid exchange fallback rate, using default",
			zap.String("raw", p.Cfg.Exchange.FallbackRate))
		fallback = defaultFallbackRate
	}

	return &Service{
		db:       p.DB,
		log:      p.Log.Named("exchange.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		fetcher:  p.Fetcher,
		fallback: fallback,
		metrics:  p.Metrics,
	}
}

func (s *Service) GetOrRefresh(ctx context.Context, force bool) (exchangedomain.RateInfo, error) {
	now := s.clock.Now()

	row, err := s.repo.Find(ctx, s.db, exchangedomain.DefaultSourceCurrency, exchangedomain.DefaultTargetCurrency)
	if err != nil {
		return exchangedomain.RateInfo{}, err
	}

	created := false
	if row == nil {
		row = &exchangedomain.ExchangeRate{
			ID:             s.genID.Generate(),
			SourceCurrency: exchangedomain.DefaultSourceCurrency,
			TargetCurrency: exchangedomain.DefaultTargetCurrency,
			Rate:           s.fallback,
			FetchedAt:      now,
			LastAttemptAt:  now,
		}
		if err := s.repo.Insert(ctx, s.db, row); err != nil {
			return exchangedomain.RateInfo{}, err
		}
		created = true
		s.log.Info("initialized exchange rate cache with fallback rate",
			zap.String("rate", row.Rate.String()))
	}

	entry := exchangedomain.RateInfo{
		Rate:           row.Rate,
		FetchedAt:      row.FetchedAt,
		SourceCurrency: row.SourceCurrency,
		TargetCurrency: row.TargetCurrency,
	}

	age := now.Sub(row.FetchedAt)
	needsRefresh := force || created || age >= StaleInterval
	if !needsRefresh {
		return entry, nil
	}

	if !force && !created {
		retryAge := now.Sub(row.LastAttemptAt)
		if retryAge < RetryInterval {
			s.log.Debug("skipping exchange rate refresh inside retry window",
				zap.Duration("retry_age", retryAge))
			return entry, nil
		}
	}

	latest, err := s.fetcher.Fetch(ctx)
	if err != nil {
		// Keep the previous value; record the attempt so backoff applies.
		s.log.Warn("failed to refresh exchange rate", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordRateRefresh("failure")
		}
		if touchErr := s.repo.TouchAttempt(ctx, s.db, row.ID, now); touchErr != nil {
			s.log.Warn("failed to record refresh attempt", zap.Error(touchErr))
		}
		return entry, nil
	}

	if err := s.repo.UpdateRate(ctx, s.db, row.ID, latest.Rate, latest.FetchedAt, now); err != nil {
		return exchangedomain.RateInfo{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordRateRefresh("success")
	}
	s.log.Info("exchange rate updated",
		zap.String("rate", latest.Rate.String()),
		zap.Time("fetched_at", latest.FetchedAt))

	return latest, nil
}
