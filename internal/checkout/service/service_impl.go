package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/stokvelhq/patron/internal/checkout/domain"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	exchangedomain "github.com/stokvelhq/patron/internal/exchange/domain"
	"github.com/stokvelhq/patron/internal/observability/metrics"
	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	"github.com/stokvelhq/patron/internal/paystack"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg      config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Catalog  *config.TierCatalogHolder
	Exchange exchangedomain.Service
	Gateway  *paystack.Client
	Payments paymentdomain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	baseURL  string
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	catalog  *config.TierCatalogHolder
	exchange exchangedomain.Service
	gateway  *paystack.Client
	payments paymentdomain.Repository
	metrics  *metrics.Metrics
}

func NewService(p Params) checkoutdomain.Service {
	return &Service{
		baseURL:  p.Cfg.BaseURL,
		db:       p.DB,
		log:      p.Log.Named("checkout.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		catalog:  p.Catalog,
		exchange: p.Exchange,
		gateway:  p.Gateway,
		payments: p.Payments,
		metrics:  p.Metrics,
	}
}

// ListTiers returns the catalog with USD display amounts computed from the
// current exchange rate. Rate staleness is invisible here; the cache always
// has a value to serve.
func (s *Service) ListTiers(ctx context.Context) ([]checkoutdomain.TierView, checkoutdomain.RateView, error) {
	rate, err := s.exchange.GetOrRefresh(ctx, false)
	if err != nil {
		return nil, checkoutdomain.RateView{}, err
	}

	catalog := s.catalog.Get()
	views := make([]checkoutdomain.TierView, 0, len(catalog.Tiers))
	for _, tier := range catalog.Tiers {
		view := checkoutdomain.TierView{
			Key:               tier.Key,
			Label:             tier.Label,
			Name:              tier.Name,
			AmountZAR:         tier.AmountZAR,
			DisplayAmount:     tier.DisplayAmount,
			Benefits:          tier.Benefits,
			CTA:               tier.CTA,
			AmountType:        tier.AmountType,
			DefaultFrequency:  tier.DefaultFrequency,
			AllowFrequency:    tier.AllowFrequency,
			ContributionLabel: tier.ContributionLabel,
		}
		if tier.AmountType == config.AmountTypeFixed && tier.AmountZAR > 0 {
			usd := exchangedomain.Convert(decimal.NewFromInt(tier.AmountZAR), rate.Rate)
			view.AmountUSD = usd.StringFixed(2)
		}
		views = append(views, view)
	}

	return views, checkoutdomain.RateView{
		Rate:      rate.Rate,
		Source:    rate.SourceCurrency,
		Target:    rate.TargetCurrency,
		FetchedAt: rate.FetchedAt.Format(time.RFC3339),
	}, nil
}

// BeginCheckout validates the submission, creates the pending payment and
// opens a gateway session. The pending row exists before the gateway call
// so the reference is correlatable by the webhook, and is removed again if
// the session never opens.
func (s *Service) BeginCheckout(ctx context.Context, req checkoutdomain.CheckoutRequest) (checkoutdomain.CheckoutSession, error) {
	catalog := s.catalog.Get()

	tier, ok := catalog.Find(req.TierKey)
	if !ok {
		return checkoutdomain.CheckoutSession{}, &checkoutdomain.ValidationError{Field: "tier", Message: "Unknown contribution tier."}
	}

	frequency := strings.TrimSpace(req.Frequency)
	if tier.AllowFrequency {
		if frequency != config.FrequencyOnce && frequency != config.FrequencyMonthly {
			frequency = tier.DefaultFrequency
		}
	} else {
		frequency = tier.DefaultFrequency
	}
	if frequency == "" {
		frequency = config.FrequencyOnce
	}

	amountZAR, verr := s.resolveAmount(ctx, tier, req)
	if verr != nil {
		return checkoutdomain.CheckoutSession{}, verr
	}
	if amountZAR.Sign() <= 0 {
		return checkoutdomain.CheckoutSession{}, &checkoutdomain.ValidationError{Field: "amount", Message: "Amount must be greater than zero."}
	}
	amountCents := amountZAR.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	email := strings.TrimSpace(req.Email)
	if email == "" || !validEmail(email) {
		return checkoutdomain.CheckoutSession{}, &checkoutdomain.ValidationError{Field: "email", Message: "Please provide a valid email address."}
	}
	updatesEmail := strings.TrimSpace(req.UpdatesEmail)
	if updatesEmail != "" && !validEmail(updatesEmail) {
		return checkoutdomain.CheckoutSession{}, &checkoutdomain.ValidationError{Field: "updates_email", Message: "Please provide a valid email address for updates."}
	}

	var planCode string
	if frequency == config.FrequencyMonthly {
		planCode, ok = catalog.PlanCode(tier.Key, frequency)
		if !ok {
			return checkoutdomain.CheckoutSession{}, fmt.Errorf("%w for %s:%s", checkoutdomain.ErrPlanCodeNotConfigured, tier.Key, frequency)
		}
	}

	payment := &paymentdomain.Payment{
		ID:            s.genID.Generate(),
		Amount:        amountCents,
		Email:         email,
		SupporterName: strings.TrimSpace(req.SupporterName),
		UpdatesEmail:  updatesEmail,
		Reference:     uuid.NewString(),
		Tier:          &tier.Key,
		Frequency:     &frequency,
		CreatedAt:     s.clock.Now(),
		UpdatedAt:     s.clock.Now(),
	}
	if planCode != "" {
		payment.PlanCode = &planCode
	}
	if err := s.payments.InsertPayment(ctx, s.db, payment); err != nil {
		return checkoutdomain.CheckoutSession{}, err
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = s.baseURL + "/contribute/callback"
	}

	metadata := map[string]any{
		"tier_key":          tier.Key,
		"tier_label":        tier.Label,
		"frequency":         frequency,
		"payment_reference": payment.Reference,
	}
	if payment.SupporterName != "" {
		metadata["supporter_name"] = payment.SupporterName
	}
	if updatesEmail != "" {
		metadata["updates_email"] = updatesEmail
	}
	if planCode != "" {
		metadata["plan_code"] = planCode
	}

	resp, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		CallbackURL: callbackURL,
		Reference:   payment.Reference,
		AmountCents: amountCents,
		PlanCode:    planCode,
		Metadata:    metadata,
	})
	if err != nil {
		s.discardPending(ctx, payment)
		return checkoutdomain.CheckoutSession{}, err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		s.discardPending(ctx, payment)
		s.log.Warn("gateway declined checkout session",
			zap.String("reference", payment.Reference),
			zap.String("message", resp.Message))
		if resp.Message != "" {
			return checkoutdomain.CheckoutSession{}, fmt.Errorf("%w: %s", checkoutdomain.ErrCheckoutDeclined, resp.Message)
		}
		return checkoutdomain.CheckoutSession{}, checkoutdomain.ErrCheckoutDeclined
	}

	if s.metrics != nil {
		s.metrics.RecordCheckout(tier.Key, frequency)
	}
	return checkoutdomain.CheckoutSession{
		Reference:        payment.Reference,
		AuthorizationURL: resp.Data.AuthorizationURL,
		AmountCents:      amountCents,
		Frequency:        frequency,
	}, nil
}

// ResolveCallback decides what the payer sees after the gateway redirect.
// Subscription payments are never decided here; the webhook is
// authoritative for those.
func (s *Service) ResolveCallback(ctx context.Context, reference string) (checkoutdomain.CallbackResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return checkoutdomain.CallbackResult{}, checkoutdomain.ErrMissingReference
	}

	payment, err := s.payments.FindPaymentByReference(ctx, s.db, reference)
	if err != nil {
		return checkoutdomain.CallbackResult{}, err
	}
	if payment == nil {
		return checkoutdomain.CallbackResult{}, checkoutdomain.ErrUnknownReference
	}

	if payment.PlanCode != nil && *payment.PlanCode != "" {
		return checkoutdomain.CallbackResult{Outcome: checkoutdomain.OutcomePending, Payment: payment}, nil
	}
	if payment.Verified {
		return checkoutdomain.CallbackResult{Outcome: checkoutdomain.OutcomeSuccess, Payment: payment}, nil
	}

	ok, data, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return checkoutdomain.CallbackResult{}, err
	}
	if !ok {
		return checkoutdomain.CallbackResult{Outcome: checkoutdomain.OutcomeFailed, Payment: payment}, nil
	}
	if data.HasPlan() {
		return checkoutdomain.CallbackResult{Outcome: checkoutdomain.OutcomePending, Payment: payment}, nil
	}
	if data.Amount != payment.Amount {
		s.log.Warn("verified amount does not match pending payment",
			zap.String("reference", reference),
			zap.Int64("expected", payment.Amount),
			zap.Int64("reported", data.Amount))
		return checkoutdomain.CallbackResult{Outcome: checkoutdomain.OutcomeFailed, Payment: payment}, nil
	}

	if err := s.payments.UpdatePayment(ctx, s.db, payment.ID, map[string]any{
		"verified":   true,
		"updated_at": s.clock.Now(),
	}); err != nil {
		return checkoutdomain.CallbackResult{}, err
	}
	payment.Verified = true
	return checkoutdomain.CallbackResult{Outcome: checkoutdomain.OutcomeSuccess, Payment: payment}, nil
}

// resolveAmount returns the charge amount in rand. Fixed tiers ignore the
// submitted amounts; custom tiers honor ZAR first, then USD converted at
// the current rate.
func (s *Service) resolveAmount(ctx context.Context, tier config.Tier, req checkoutdomain.CheckoutRequest) (decimal.Decimal, *checkoutdomain.ValidationError) {
	if tier.AmountType == config.AmountTypeFixed {
		return decimal.NewFromInt(tier.AmountZAR), nil
	}

	if zar, ok := parseAmount(req.AmountZAR); ok {
		return exchangedomain.Normalize(zar), nil
	}

	if usd, ok := parseAmount(req.AmountUSD); ok {
		rate, err := s.exchange.GetOrRefresh(ctx, false)
		if err == nil && rate.Rate.Sign() > 0 {
			return exchangedomain.Normalize(usd.Div(rate.Rate)), nil
		}
		s.log.Warn("usd amount submitted but no usable exchange rate", zap.Error(err))
	}

	return decimal.Decimal{}, &checkoutdomain.ValidationError{Field: "amount", Message: "Please enter a valid amount in ZAR or USD."}
}

// discardPending removes the pending payment after a failed gateway call.
// Best effort; a leftover row stays unverified forever and is harmless.
func (s *Service) discardPending(ctx context.Context, payment *paymentdomain.Payment) {
	if err := s.payments.DeletePayment(ctx, s.db, payment.ID); err != nil {
		s.log.Error("failed to discard pending payment",
			zap.String("reference", payment.Reference), zap.Error(err))
	}
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}

func validEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}
