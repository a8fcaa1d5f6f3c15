// Package webhook verifies, audits and routes inbound gateway events.
package webhook

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	"github.com/stokvelhq/patron/internal/observability/metrics"
	"github.com/stokvelhq/patron/internal/paystack"
	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    paymentdomain.Repository
	Store   paymentdomain.Store
	Metrics *metrics.Metrics `optional:"true"`
}

// Dispatcher is the single entry point for gateway webhooks. Every request
// is audited before any accept/reject decision, the signature is checked in
// constant time, and mutations run inside one transaction so redelivered
// events serialize on row locks.
type Dispatcher struct {
	secret  []byte
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    paymentdomain.Repository
	store   paymentdomain.Store
	metrics *metrics.Metrics
}

func NewDispatcher(p Params) paymentdomain.Dispatcher {
	return &Dispatcher{
		secret:  []byte(p.Cfg.Paystack.SecretKey),
		db:      p.DB,
		log:     p.Log.Named("payment.webhook"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		store:   p.Store,
		metrics: p.Metrics,
	}
}

func (d *Dispatcher) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (paymentdomain.DispatchResult, error) {
	valid := paystack.VerifySignature(rawBody, signature, d.secret)

	envelope, data, parseErr := paymentdomain.ParseEnvelope(rawBody)

	// Audit first. The event row is written and committed regardless of
	// signature validity or payload shape, in its own transaction, so a
	// later dispatch rollback cannot erase the record.
	if err := d.audit(ctx, rawBody, signature, valid, envelope, data); err != nil {
		return paymentdomain.ResultOK, err
	}

	// A body that cannot be parsed is rejected as malformed even when the
	// signature also fails; the audit row still records signature_valid.
	if parseErr != nil {
		d.record("invalid", paymentdomain.ResultBadPayload)
		return paymentdomain.ResultBadPayload, nil
	}
	if !valid {
		d.log.Warn("webhook signature mismatch",
			zap.String("event", envelope.Event))
		d.record(envelope.Event, paymentdomain.ResultRejected)
		return paymentdomain.ResultRejected, nil
	}
	if envelope.Event == "" {
		d.record("missing", paymentdomain.ResultBadPayload)
		return paymentdomain.ResultBadPayload, nil
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return d.route(ctx, tx, envelope.Event, data)
	})
	if err != nil {
		d.record(envelope.Event, "error")
		return paymentdomain.ResultOK, err
	}

	d.record(envelope.Event, paymentdomain.ResultOK)
	return paymentdomain.ResultOK, nil
}

func (d *Dispatcher) route(ctx context.Context, tx *gorm.DB, event string, data *paymentdomain.EventData) error {
	switch event {
	case paymentdomain.EventSubscriptionCreate:
		_, err := d.store.UpsertSubscription(ctx, tx, data)
		return err

	case paymentdomain.EventChargeSuccess:
		if !data.IsSubscriptionCharge() {
			return d.store.RecordOneOffCharge(ctx, tx, data)
		}
		// A renewal can arrive before, or instead of, subscription.create;
		// the charge payload itself creates or refreshes the subscription.
		subscription, err := d.store.UpsertSubscription(ctx, tx, data)
		if err != nil {
			return err
		}
		if subscription == nil {
			if code := data.ResolveSubscriptionCode(); code != "" {
				subscription, err = d.repo.FindSubscriptionByCodeForUpdate(ctx, tx, code)
				if err != nil {
					return err
				}
			}
		}
		return d.store.RecordSubscriptionCharge(ctx, tx, data, subscription)

	case paymentdomain.EventInvoicePaymentFailed:
		return d.store.MarkSubscriptionStatus(ctx, tx, data.ResolveSubscriptionCode(), paymentdomain.SubscriptionStatusPastDue)

	case paymentdomain.EventSubscriptionDisable:
		return d.store.MarkSubscriptionStatus(ctx, tx, data.ResolveSubscriptionCode(), paymentdomain.SubscriptionStatusCanceled)

	case paymentdomain.EventSubscriptionEnable:
		return d.store.MarkSubscriptionStatus(ctx, tx, data.ResolveSubscriptionCode(), paymentdomain.SubscriptionStatusActive)

	default:
		// Unknown kinds are acknowledged so the gateway stops retrying.
		d.log.Info("ignoring unhandled webhook event", zap.String("event", event))
		return nil
	}
}

func (d *Dispatcher) audit(ctx context.Context, rawBody []byte, signature string, valid bool, envelope paymentdomain.Envelope, data *paymentdomain.EventData) error {
	payload := json.RawMessage(rawBody)
	if !json.Valid(rawBody) {
		// The payload column is JSON; wrap non-JSON bodies as a string
		// so the raw bytes are still recoverable.
		encoded, err := json.Marshal(string(rawBody))
		if err != nil {
			return err
		}
		payload = encoded
	}

	event := &paymentdomain.WebhookEvent{
		ID:             d.genID.Generate(),
		Event:          envelope.Event,
		Signature:      signature,
		SignatureValid: valid,
		Payload:        []byte(payload),
		ReceivedAt:     d.clock.Now(),
	}
	if data != nil {
		event.Reference = data.Reference
		event.SubscriptionCode = data.ResolveSubscriptionCode()
	}
	return d.repo.InsertWebhookEvent(ctx, d.db, event)
}

func (d *Dispatcher) record(event string, result paymentdomain.DispatchResult) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordWebhookEvent(event, string(result))
}
