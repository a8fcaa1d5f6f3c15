package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/stokvelhq/patron/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() paymentdomain.Repository {
	return &repo{}
}

func (r *repo) InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *paymentdomain.WebhookEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *paymentdomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repo) DeletePayment(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&paymentdomain.Payment{}).Error
}

func (r *repo) FindPaymentByReference(ctx context.Context, db *gorm.DB, reference string) (*paymentdomain.Payment, error) {
	return r.findPayment(ctx, db, reference, false)
}

func (r *repo) FindPaymentByReferenceForUpdate(ctx context.Context, db *gorm.DB, reference string) (*paymentdomain.Payment, error) {
	return r.findPayment(ctx, db, reference, true)
}

func (r *repo) findPayment(ctx context.Context, db *gorm.DB, reference string, lock bool) (*paymentdomain.Payment, error) {
	query := db.WithContext(ctx).Where("reference = ?", reference)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var payment paymentdomain.Payment
	err := query.First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, subscription *paymentdomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) UpdateSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&paymentdomain.Subscription{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repo) FindSubscriptionByCode(ctx context.Context, db *gorm.DB, code string) (*paymentdomain.Subscription, error) {
	return r.findSubscription(ctx, db, code, false)
}

func (r *repo) FindSubscriptionByCodeForUpdate(ctx context.Context, db *gorm.DB, code string) (*paymentdomain.Subscription, error) {
	return r.findSubscription(ctx, db, code, true)
}

func (r *repo) findSubscription(ctx context.Context, db *gorm.DB, code string, lock bool) (*paymentdomain.Subscription, error) {
	query := db.WithContext(ctx).Where("subscription_code = ?", code)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var subscription paymentdomain.Subscription
	err := query.First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}
