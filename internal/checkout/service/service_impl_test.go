package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/stokvelhq/patron/internal/checkout/domain"
	checkoutservice "github.com/stokvelhq/patron/internal/checkout/service"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	paymentrepo "github.com/stokvelhq/patron/internal/payment/repository"
	"github.com/stokvelhq/patron/internal/paystack"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixedRateService struct {
	rate decimal.Decimal
}

func (s *fixedRateService) GetOrRefresh(ctx context.Context, force bool) (exchangedomain.RateInfo, error) {
	return exchangedomain.RateInfo{
		Rate:           s.rate,
		FetchedAt:      time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		SourceCurrency: exchangedomain.DefaultSourceCurrency,
		TargetCurrency: exchangedomain.DefaultTargetCurrency,
	}, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE payments (
		id BIGINT PRIMARY KEY,
		user_id BIGINT,
		amount BIGINT NOT NULL,
		email TEXT NOT NULL,
		supporter_name TEXT NOT NULL DEFAULT '',
		updates_email TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		tier TEXT,
		frequency TEXT,
		plan_code TEXT,
		subscription_id BIGINT,
		paid_via_subscription BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_payments_reference ON payments(reference)`).Error)

	return db
}

func testCatalog() config.TierCatalog {
	catalog := config.DefaultTierCatalog()
	catalog.PlanCodes = map[string]string{
		"tier-1:monthly": "PLN_tier1_monthly",
	}
	return catalog
}

func newCheckoutService(t *testing.T, db *gorm.DB, gatewayURL string) checkoutdomain.Service {
	return newCheckoutServiceWithCatalog(t, db, gatewayURL, testCatalog())
}

func newCheckoutServiceWithCatalog(t *testing.T, db *gorm.DB, gatewayURL string, catalog config.TierCatalog) checkoutdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(40)
	require.NoError(t, err)

	gateway := paystack.NewClient(config.PaystackConfig{
		SecretKey:         "sk_test",
		BaseURL:           gatewayURL,
		InitializeTimeout: 2 * time.Second,
		VerifyTimeout:     2 * time.Second,
	}, zap.NewNop())

	return checkoutservice.NewService(checkoutservice.Params{
		Cfg:      config.Config{BaseURL: "http://localhost:8080"},
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Catalog:  config.NewStaticTierCatalogHolder(catalog),
		Exchange: &fixedRateService{rate: decimal.RequireFromString("0.05")},
		Gateway:  gateway,
		Payments: paymentrepo.Provide(),
	})
}

func gatewayStub(t *testing.T, initialize func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		initialize(w, body)
	}))
}

func TestListTiersComputesUSDAmounts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newCheckoutService(t, db, "http://127.0.0.1:0")

	tiers, rate, err := svc.ListTiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	require.True(t, rate.Rate.Equal(decimal.RequireFromString("0.05")))

	require.Equal(t, "2.50", tiers[0].AmountUSD)
	require.Equal(t, "", tiers[1].AmountUSD)
	require.Equal(t, "440.00", tiers[2].AmountUSD)
}

func TestBeginCheckoutFixedTierCreatesPendingPaymentFirst(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	var sawReference string
	srv := gatewayStub(t, func(w http.ResponseWriter, body map[string]any) {
		sawReference, _ = body["reference"].(string)
		require.Equal(t, "5000", body["amount"])
		require.Equal(t, "ZAR", body["currency"])

		// The pending payment must already exist when the gateway is
		// called.
		var n int64
		require.NoError(t, db.Table("payments").Where("reference = ?", sawReference).Count(&n).Error)
		require.EqualValues(t, 1, n)

		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"authorization_url": "https://gateway.example/redirect"},
		})
	})
	defer srv.Close()

	svc := newCheckoutService(t, db, srv.URL)
	session, err := svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey: "tier-1",
		Email:   "payer@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "https://gateway.example/redirect", session.AuthorizationURL)
	require.EqualValues(t, 5000, session.AmountCents)
	require.Equal(t, sawReference, session.Reference)

	var payment paymentdomain.Payment
	require.NoError(t, db.Where("reference = ?", session.Reference).First(&payment).Error)
	require.False(t, payment.Verified)
	require.NotNil(t, payment.PlanCode)
	require.Equal(t, "PLN_tier1_monthly", *payment.PlanCode)
}

func TestBeginCheckoutCustomTierConvertsUSD(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	srv := gatewayStub(t, func(w http.ResponseWriter, body map[string]any) {
		// 10 USD at 0.05 ZAR->USD is 200 ZAR, charged as 20000 cents.
		require.Equal(t, "20000", body["amount"])
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"authorization_url": "https://gateway.example/redirect"},
		})
	})
	defer srv.Close()

	svc := newCheckoutService(t, db, srv.URL)
	session, err := svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey:   "tier-2",
		AmountUSD: "10",
		Email:     "payer@example.com",
	})
	require.NoError(t, err)
	require.EqualValues(t, 20000, session.AmountCents)
	require.Equal(t, "once", session.Frequency)
}

func TestBeginCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newCheckoutService(t, db, "http://127.0.0.1:0")

	var vErr *checkoutdomain.ValidationError

	_, err := svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey: "tier-2",
		Email:   "payer@example.com",
	})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "amount", vErr.Field)

	_, err = svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey:   "tier-2",
		AmountZAR: "-5",
		Email:     "payer@example.com",
	})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "amount", vErr.Field)

	_, err = svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey:   "tier-2",
		AmountZAR: "100",
		Email:     "not-an-email",
	})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "email", vErr.Field)

	// No pending payment survives a validation failure.
	var n int64
	require.NoError(t, db.Table("payments").Count(&n).Error)
	require.EqualValues(t, 0, n)
}

func TestBeginCheckoutMissingMonthlyPlanCodeIsConfigurationError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	// tier-1 defaults to monthly; deploying without its plan code mapped
	// is a configuration defect, not payer error.
	catalog := config.DefaultTierCatalog()
	svc := newCheckoutServiceWithCatalog(t, db, "http://127.0.0.1:0", catalog)

	_, err := svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey: "tier-1",
		Email:   "payer@example.com",
	})
	require.ErrorIs(t, err, checkoutdomain.ErrPlanCodeNotConfigured)

	var n int64
	require.NoError(t, db.Table("payments").Count(&n).Error)
	require.EqualValues(t, 0, n)
}

func TestBeginCheckoutDeletesPendingPaymentWhenGatewayDeclines(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	srv := gatewayStub(t, func(w http.ResponseWriter, body map[string]any) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "insufficient permissions",
		})
	})
	defer srv.Close()

	svc := newCheckoutService(t, db, srv.URL)
	_, err := svc.BeginCheckout(ctx, checkoutdomain.CheckoutRequest{
		TierKey: "tier-1",
		Email:   "payer@example.com",
	})
	require.ErrorIs(t, err, checkoutdomain.ErrCheckoutDeclined)

	var n int64
	require.NoError(t, db.Table("payments").Count(&n).Error)
	require.EqualValues(t, 0, n)
}

func TestResolveCallbackOneOffVerifiesAgainstGateway(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(41)
	require.NoError(t, err)
	pending := &paymentdomain.Payment{
		ID:        node.Generate(),
		Amount:    5000,
		Email:     "payer@example.com",
		Reference: "ref-cb",
	}
	require.NoError(t, db.Create(pending).Error)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/ref-cb", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"amount": 5000, "status": "success", "reference": "ref-cb"},
		})
	}))
	defer srv.Close()

	svc := newCheckoutService(t, db, srv.URL)
	result, err := svc.ResolveCallback(ctx, "ref-cb")
	require.NoError(t, err)
	require.Equal(t, checkoutdomain.OutcomeSuccess, result.Outcome)

	var payment paymentdomain.Payment
	require.NoError(t, db.Where("reference = ?", "ref-cb").First(&payment).Error)
	require.True(t, payment.Verified)
}

func TestResolveCallbackSubscriptionIsWebhookPending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(42)
	require.NoError(t, err)
	plan := "PLN_tier1_monthly"
	pending := &paymentdomain.Payment{
		ID:        node.Generate(),
		Amount:    5000,
		Email:     "payer@example.com",
		Reference: "ref-sub",
		PlanCode:  &plan,
	}
	require.NoError(t, db.Create(pending).Error)

	// No gateway call should happen; subscriptions wait for the webhook.
	svc := newCheckoutService(t, db, "http://127.0.0.1:0")
	result, err := svc.ResolveCallback(ctx, "ref-sub")
	require.NoError(t, err)
	require.Equal(t, checkoutdomain.OutcomePending, result.Outcome)
}

func TestResolveCallbackUnknownReference(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newCheckoutService(t, db, "http://127.0.0.1:0")

	_, err := svc.ResolveCallback(ctx, "")
	require.ErrorIs(t, err, checkoutdomain.ErrMissingReference)

	_, err = svc.ResolveCallback(ctx, "ref-ghost")
	require.ErrorIs(t, err, checkoutdomain.ErrUnknownReference)
}
