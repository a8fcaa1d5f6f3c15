package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) error

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	DeletePayment(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindPaymentByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	// FindPaymentByReferenceForUpdate acquires a row lock so concurrent
	// deliveries for the same reference serialize.
	FindPaymentByReferenceForUpdate(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)

	InsertSubscription(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	UpdateSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	FindSubscriptionByCode(ctx context.Context, db *gorm.DB, code string) (*Subscription, error)
	FindSubscriptionByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*Subscription, error)
}
