// Package domain contains persistence models for payments, subscriptions
// and the webhook audit log.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// KnownStatus reports whether the value is one of the recognized states.
func KnownStatus(status SubscriptionStatus) bool {
	switch status {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}

// Subscription mirrors the gateway's view of a recurring billing agreement.
// subscription_code is the natural key; every upsert is a full replace of
// the gateway-supplied fields.
type Subscription struct {
	ID               snowflake.ID       `json:"id" gorm:"primaryKey"`
	UserID           *snowflake.ID      `json:"user_id" gorm:"index"`
	PlanCode         string             `json:"plan_code" gorm:"type:text;not null"`
	SubscriptionCode string             `json:"subscription_code" gorm:"type:text;not null;uniqueIndex"`
	CustomerCode     string             `json:"customer_code" gorm:"type:text;not null;default:''"`
	Status           SubscriptionStatus `json:"status" gorm:"type:text;not null;default:'active'"`
	NextPaymentDate  *time.Time         `json:"next_payment_date"`
	CardBrand        string             `json:"card_brand" gorm:"type:text;not null;default:''"`
	CardLast4        string             `json:"card_last4" gorm:"type:text;not null;default:''"`
	CreatedAt        time.Time          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Payment is one contribution attempt. The reference is globally unique and
// immutable once set; verified flips to true exactly once via gateway
// verification or webhook confirmation and never reverts.
type Payment struct {
	ID                  snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID              *snowflake.ID `json:"user_id" gorm:"index"`
	Amount              int64         `json:"amount" gorm:"not null"`
	Email               string        `json:"email" gorm:"type:text;not null"`
	SupporterName       string        `json:"supporter_name" gorm:"type:text;not null;default:''"`
	UpdatesEmail        string        `json:"updates_email" gorm:"type:text;not null;default:''"`
	Reference           string        `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	Verified            bool          `json:"verified" gorm:"not null;default:false"`
	Tier                *string       `json:"tier" gorm:"type:text"`
	Frequency           *string       `json:"frequency" gorm:"type:text"`
	PlanCode            *string       `json:"plan_code" gorm:"type:text"`
	SubscriptionID      *snowflake.ID `json:"subscription_id" gorm:"index"`
	PaidViaSubscription bool          `json:"paid_via_subscription" gorm:"not null;default:false"`
	CreatedAt           time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Payment) TableName() string { return "payments" }

// WebhookEvent is the append-only audit record of every inbound webhook,
// valid or not. Rows are written before any dispatch decision and are never
// updated or deleted.
type WebhookEvent struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	Event            string         `json:"event" gorm:"type:text;not null"`
	Reference        string         `json:"reference" gorm:"type:text;not null;default:''"`
	SubscriptionCode string         `json:"subscription_code" gorm:"type:text;not null;default:''"`
	Signature        string         `json:"signature" gorm:"type:text;not null;default:''"`
	SignatureValid   bool           `json:"signature_valid" gorm:"not null;default:false"`
	Payload          datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt       time.Time      `json:"received_at" gorm:"not null"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrMissingEvent   = errors.New("missing_event_type")
)
