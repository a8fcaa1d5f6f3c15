package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stokvelhq/patron/internal/clock"
	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	userdomain "github.com/stokvelhq/patron/internal/user/domain"
	"github.com/stokvelhq/patron/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     paymentdomain.Repository
	UserRepo userdomain.Repository
}

// Service reconciles gateway-supplied facts against local state. Delivery
// is neither exactly-once nor ordered, so every operation is an idempotent
// upsert keyed on the payment reference or subscription code.
type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     paymentdomain.Repository
	userRepo userdomain.Repository
}

func NewService(p Params) paymentdomain.Store {
	return &Service{
		log:      p.Log.Named("payment.store"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
	}
}

// UpsertSubscription applies a gateway subscription payload as a full
// replace keyed on subscription_code. A payload that cannot identify its
// target returns (nil, nil); the caller has no recovery action.
func (s *Service) UpsertSubscription(ctx context.Context, tx *gorm.DB, data *paymentdomain.EventData) (*paymentdomain.Subscription, error) {
	code := data.ResolveSubscriptionCode()
	if code == "" {
		s.log.Warn("subscription payload missing subscription_code")
		return nil, nil
	}

	planCode := data.ResolvePlanCode()
	if planCode == "" {
		s.log.Warn("subscription payload missing plan_code",
			zap.String("subscription_code", code))
		return nil, nil
	}

	customerCode, email := data.ResolveCustomer()

	user, err := s.resolveUser(ctx, tx, data.ResolveMetadata(), email)
	if err != nil {
		return nil, err
	}

	cardBrand, cardLast4 := data.ResolveCard()
	nextPayment := data.ResolveNextPaymentDate()
	status := data.ResolveStatus()

	existing, err := s.repo.FindSubscriptionByCodeForUpdate(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		subscription := &paymentdomain.Subscription{
			ID:               s.genID.Generate(),
			PlanCode:         planCode,
			SubscriptionCode: code,
			CustomerCode:     customerCode,
			Status:           status,
			NextPaymentDate:  nextPayment,
			CardBrand:        cardBrand,
			CardLast4:        cardLast4,
			CreatedAt:        s.clock.Now(),
			UpdatedAt:        s.clock.Now(),
		}
		if user != nil {
			subscription.UserID = &user.ID
		}
		if err := s.repo.InsertSubscription(ctx, tx, subscription); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// Concurrent redelivery won the insert; retry as an update.
				return s.UpsertSubscription(ctx, tx, data)
			}
			return nil, err
		}
		return subscription, nil
	}

	// The gateway payload is authoritative for every field it supplies.
	fields := map[string]any{
		"plan_code":         planCode,
		"customer_code":     customerCode,
		"status":            status,
		"next_payment_date": nextPayment,
		"card_brand":        cardBrand,
		"card_last4":        cardLast4,
		"updated_at":        s.clock.Now(),
	}
	existing.PlanCode = planCode
	existing.CustomerCode = customerCode
	existing.Status = status
	existing.NextPaymentDate = nextPayment
	existing.CardBrand = cardBrand
	existing.CardLast4 = cardLast4

	if user != nil && !sameID(existing.UserID, user.ID) {
		fields["user_id"] = user.ID
		existing.UserID = &user.ID
	}

	if err := s.repo.UpdateSubscription(ctx, tx, existing.ID, fields); err != nil {
		return nil, err
	}
	return existing, nil
}

// RecordSubscriptionCharge applies a charge.success event that carries a
// subscription or plan reference. A missing reference cannot be correlated
// or deduplicated, so the event is skipped.
func (s *Service) RecordSubscriptionCharge(ctx context.Context, tx *gorm.DB, data *paymentdomain.EventData, subscription *paymentdomain.Subscription) error {
	if subscription == nil {
		s.log.Warn("subscription charge received without a matching subscription record")
	}

	reference := strings.TrimSpace(data.Reference)
	if reference == "" {
		s.log.Warn("subscription charge missing reference; skipping")
		return nil
	}

	metadata := data.Metadata
	planCode := data.ResolvePlanCode()
	if planCode == "" && subscription != nil {
		planCode = subscription.PlanCode
	}

	_, email := data.ResolveCustomer()

	var user *userdomain.User
	var err error
	if subscription != nil && subscription.UserID != nil {
		user, err = s.userRepo.FindByID(ctx, tx, *subscription.UserID)
		if err != nil {
			return err
		}
	}
	if user == nil {
		user, err = s.resolveUser(ctx, tx, metadata, email)
		if err != nil {
			return err
		}
	}
	if email == "" && user != nil {
		email = user.Email
	}

	tierKey := metadata.TierKey()
	frequency := metadata.Frequency()
	if frequency == "" {
		frequency = "monthly"
	}

	payment, err := s.repo.FindPaymentByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return err
	}

	if payment != nil {
		fields := map[string]any{
			"plan_code":             nullableString(planCode),
			"paid_via_subscription": true,
			"verified":              true,
			"updated_at":            s.clock.Now(),
		}
		if subscription != nil {
			fields["subscription_id"] = subscription.ID
		}
		if data.Amount.Set && data.Amount.Value != 0 {
			fields["amount"] = data.Amount.Value
		}
		if tierKey != "" && !sameString(payment.Tier, tierKey) {
			fields["tier"] = tierKey
		}
		if frequency != "" && !sameString(payment.Frequency, frequency) {
			fields["frequency"] = frequency
		}
		if email != "" && email != payment.Email {
			fields["email"] = email
		}
		if user != nil && !sameID(payment.UserID, user.ID) {
			fields["user_id"] = user.ID
		}
		if err := s.repo.UpdatePayment(ctx, tx, payment.ID, fields); err != nil {
			return err
		}
	} else {
		// A renewal cycle has no local checkout session; create the
		// verified payment directly. An amount is never fabricated.
		if !data.Amount.Set {
			s.log.Warn("unable to record subscription payment without amount",
				zap.String("reference", reference))
			return nil
		}
		created := &paymentdomain.Payment{
			ID:                  s.genID.Generate(),
			Amount:              data.Amount.Value,
			Email:               email,
			Reference:           reference,
			Verified:            true,
			PlanCode:            nullableString(planCode),
			PaidViaSubscription: true,
			CreatedAt:           s.clock.Now(),
			UpdatedAt:           s.clock.Now(),
		}
		if tierKey != "" {
			created.Tier = &tierKey
		}
		if frequency != "" {
			created.Frequency = &frequency
		}
		if user != nil {
			created.UserID = &user.ID
		}
		if subscription != nil {
			created.SubscriptionID = &subscription.ID
		}
		if err := s.repo.InsertPayment(ctx, tx, created); err != nil {
			return err
		}
	}

	if subscription == nil {
		return nil
	}

	// Refresh the subscription's denormalized fields, touching only what
	// actually changed.
	fields := map[string]any{}
	if subscription.Status != paymentdomain.SubscriptionStatusActive {
		fields["status"] = paymentdomain.SubscriptionStatusActive
		subscription.Status = paymentdomain.SubscriptionStatusActive
	}
	if nextPayment := data.ResolveNextPaymentDate(); nextPayment != nil && !sameTime(subscription.NextPaymentDate, nextPayment) {
		fields["next_payment_date"] = nextPayment
		subscription.NextPaymentDate = nextPayment
	}
	cardBrand, cardLast4 := data.ResolveCard()
	if cardBrand != "" && subscription.CardBrand != cardBrand {
		fields["card_brand"] = cardBrand
		subscription.CardBrand = cardBrand
	}
	if cardLast4 != "" && subscription.CardLast4 != cardLast4 {
		fields["card_last4"] = cardLast4
		subscription.CardLast4 = cardLast4
	}
	if user != nil && !sameID(subscription.UserID, user.ID) {
		fields["user_id"] = user.ID
		subscription.UserID = &user.ID
	}
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = s.clock.Now()
	return s.repo.UpdateSubscription(ctx, tx, subscription.ID, fields)
}

// RecordOneOffCharge confirms a pending payment by reference. A charge for
// an unknown reference is silently ignored; it may belong to a checkout
// outside this system.
func (s *Service) RecordOneOffCharge(ctx context.Context, tx *gorm.DB, data *paymentdomain.EventData) error {
	reference := strings.TrimSpace(data.Reference)
	if reference == "" {
		return nil
	}

	payment, err := s.repo.FindPaymentByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return nil
	}

	fields := map[string]any{
		"verified":   true,
		"updated_at": s.clock.Now(),
	}
	// The gateway is ground truth on amount mismatches.
	if data.Amount.Set && data.Amount.Value != 0 && data.Amount.Value != payment.Amount {
		fields["amount"] = data.Amount.Value
	}
	return s.repo.UpdatePayment(ctx, tx, payment.ID, fields)
}

// MarkSubscriptionStatus transitions a subscription by code. Unknown codes
// and already-applied statuses are no-ops; an unrecognized status value
// falls back to active.
func (s *Service) MarkSubscriptionStatus(ctx context.Context, tx *gorm.DB, subscriptionCode string, status paymentdomain.SubscriptionStatus) error {
	if strings.TrimSpace(subscriptionCode) == "" {
		return nil
	}
	if !paymentdomain.KnownStatus(status) {
		status = paymentdomain.SubscriptionStatusActive
	}

	subscription, err := s.repo.FindSubscriptionByCodeForUpdate(ctx, tx, subscriptionCode)
	if err != nil {
		return err
	}
	if subscription == nil {
		return nil
	}
	if subscription.Status == status {
		return nil
	}

	return s.repo.UpdateSubscription(ctx, tx, subscription.ID, map[string]any{
		"status":     status,
		"updated_at": s.clock.Now(),
	})
}

// resolveUser prefers the explicit user_id from checkout metadata, then a
// case-insensitive email match. A subscription may legitimately have no
// resolvable user.
func (s *Service) resolveUser(ctx context.Context, tx *gorm.DB, metadata paymentdomain.Metadata, email string) (*userdomain.User, error) {
	if id, ok := metadata.UserID(); ok {
		user, err := s.userRepo.FindByID(ctx, tx, snowflake.ID(id))
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	if email != "" {
		return s.userRepo.FindByEmail(ctx, tx, email)
	}
	return nil, nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func sameString(stored *string, value string) bool {
	return stored != nil && *stored == value
}

func sameID(stored *snowflake.ID, value snowflake.ID) bool {
	return stored != nil && *stored == value
}

func sameTime(stored, value *time.Time) bool {
	if stored == nil || value == nil {
		return false
	}
	return stored.Equal(*value)
}
