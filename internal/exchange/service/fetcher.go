package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	"go.uber.org/zap"
)

// HTTPFetcher pulls the current rate from the configured rate API. Every
// failure mode is folded into ErrFetchFailed so callers see one outcome.
type HTTPFetcher struct {
	apiURL string
	client *http.Client
	clock  clock.Clock
	log    *zap.Logger
}

func NewHTTPFetcher(cfg config.ExchangeConfig, clk clock.Clock, log *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		apiURL: cfg.APIURL,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  clk,
		log:    log.Named("exchange.fetcher"),
	}
}

type ratePayload struct {
	Rates             map[string]json.Number `json:"rates"`
	Date              string                 `json:"date"`
	TimeLastUpdateUTC string                 `json:"time_last_update_utc"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (exchangedomain.RateInfo, error) {
	reqURL, err := f.buildURL()
	if err != nil {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: %v", exchangedomain.ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: %v", exchangedomain.ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: %v", exchangedomain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: unexpected status %d", exchangedomain.ErrFetchFailed, resp.StatusCode)
	}

	var payload ratePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: invalid JSON response", exchangedomain.ErrFetchFailed)
	}

	raw, ok := payload.Rates[exchangedomain.DefaultTargetCurrency]
	if !ok {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: rate not found in response", exchangedomain.ErrFetchFailed)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return exchangedomain.RateInfo{}, fmt.Errorf("%w: invalid rate %q", exchangedomain.ErrFetchFailed, raw.String())
	}

	return exchangedomain.RateInfo{
		Rate:           rate,
		FetchedAt:      f.parseTimestamp(payload),
		SourceCurrency: exchangedomain.DefaultSourceCurrency,
		TargetCurrency: exchangedomain.DefaultTargetCurrency,
	}, nil
}

func (f *HTTPFetcher) buildURL() (string, error) {
	parsed, err := url.Parse(f.apiURL)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	lower := strings.ToLower(parsed.RawQuery)
	if !strings.Contains(lower, "from=") {
		query.Set("from", exchangedomain.DefaultSourceCurrency)
	}
	if !strings.Contains(lower, "to=") {
		query.Set("to", exchangedomain.DefaultTargetCurrency)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (f *HTTPFetcher) parseTimestamp(payload ratePayload) time.Time {
	raw := payload.Date
	if raw == "" {
		raw = payload.TimeLastUpdateUTC
	}
	if raw == "" {
		return f.clock.Now()
	}

	raw = strings.ReplaceAll(raw, "Z", "+00:00")
	for _, layout := range []string{"2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}

	f.log.Debug("unparseable rate timestamp, using now", zap.String("raw", raw))
	return f.clock.Now()
}
