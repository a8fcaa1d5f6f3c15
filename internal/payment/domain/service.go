package domain

import (
	"context"

	"gorm.io/gorm"
)

// DispatchResult is the outcome of handling one inbound webhook.
type DispatchResult string

const (
	// ResultOK covers accepted events, including unknown kinds and benign
	// no-ops; the gateway must not retry these.
	ResultOK DispatchResult = "ok"
	// ResultRejected means the signature check failed.
	ResultRejected DispatchResult = "rejected"
	// ResultBadPayload means the body was not valid JSON or had no event type.
	ResultBadPayload DispatchResult = "bad_payload"
)

// Dispatcher verifies, audits and routes inbound gateway webhooks.
type Dispatcher interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (DispatchResult, error)
}

// Store holds the idempotent upsert operations driven by webhook payloads.
// Methods take the transaction handle opened by the dispatcher so that
// concurrent duplicate deliveries serialize on row locks.
type Store interface {
	UpsertSubscription(ctx context.Context, tx *gorm.DB, data *EventData) (*Subscription, error)
	RecordSubscriptionCharge(ctx context.Context, tx *gorm.DB, data *EventData, subscription *Subscription) error
	RecordOneOffCharge(ctx context.Context, tx *gorm.DB, data *EventData) error
	MarkSubscriptionStatus(ctx context.Context, tx *gorm.DB, subscriptionCode string, status SubscriptionStatus) error
}
