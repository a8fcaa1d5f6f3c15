// Package domain defines the checkout contracts: starting a gateway
// session and resolving the browser callback.
package domain

import (
	"context"
	"errors"
	"fmt"

	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrPlanCodeNotConfigured is a deployment defect: a monthly tier has
	// no gateway plan code mapped. It is never shown to the payer.
	ErrPlanCodeNotConfigured = errors.New("plan code not configured")

	// ErrCheckoutDeclined means the gateway refused to open a session.
	ErrCheckoutDeclined = errors.New("checkout session declined")

	ErrMissingReference = errors.New("missing transaction reference")
	ErrUnknownReference = errors.New("unknown transaction reference")
)

// ValidationError is a user-facing input error. It carries the message to
// redisplay; no state mutation happened when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CheckoutRequest is the payer's submission. Amounts arrive as the raw form
// strings; at most one of AmountZAR/AmountUSD is honored, ZAR first.
type CheckoutRequest struct {
	TierKey       string `json:"tier" binding:"required"`
	Frequency     string `json:"frequency"`
	AmountZAR     string `json:"amount"`
	AmountUSD     string `json:"amount_usd"`
	Email         string `json:"email" binding:"required"`
	SupporterName string `json:"supporter_name"`
	UpdatesEmail  string `json:"updates_email"`
	CallbackURL   string `json:"-"`
}

// CheckoutSession is a successfully opened gateway session.
type CheckoutSession struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AmountCents      int64  `json:"amount_cents"`
	Frequency        string `json:"frequency"`
}

// CallbackOutcome classifies what the payer should see after the gateway
// redirects back.
type CallbackOutcome string

const (
	// OutcomeSuccess means the payment is verified.
	OutcomeSuccess CallbackOutcome = "success"
	// OutcomePending means a subscription payment awaits webhook
	// confirmation; the callback never decides those.
	OutcomePending CallbackOutcome = "pending"
	// OutcomeFailed means gateway verification did not confirm the charge.
	OutcomeFailed CallbackOutcome = "failed"
)

// CallbackResult is the resolved state for one callback reference.
type CallbackResult struct {
	Outcome CallbackOutcome
	Payment *paymentdomain.Payment
}

// TierView is a catalog entry enriched with the USD display amount derived
// from the current exchange rate.
type TierView struct {
	Key               string   `json:"key"`
	Label             string   `json:"label"`
	Name              string   `json:"name"`
	AmountZAR         int64    `json:"amount_zar"`
	AmountUSD         string   `json:"amount_usd,omitempty"`
	DisplayAmount     string   `json:"display_amount"`
	Benefits          []string `json:"benefits"`
	CTA               string   `json:"cta"`
	AmountType        string   `json:"amount_type"`
	DefaultFrequency  string   `json:"default_frequency"`
	AllowFrequency    bool     `json:"allow_frequency"`
	ContributionLabel string   `json:"contribution_label"`
}

// RateView accompanies tier listings so the client can convert custom
// amounts the same way the server will.
type RateView struct {
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source_currency"`
	Target    string          `json:"target_currency"`
	FetchedAt string          `json:"fetched_at"`
}

// Service orchestrates checkout sessions against the payment gateway.
type Service interface {
	ListTiers(ctx context.Context) ([]TierView, RateView, error)
	BeginCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	ResolveCallback(ctx context.Context, reference string) (CallbackResult, error)
}
