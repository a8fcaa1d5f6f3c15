// Package domain holds the feedback entity and its service contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type FeedbackType string

const (
	TypeContact FeedbackType = "Contact"
	TypeFollow  FeedbackType = "Follow"
	TypeOther   FeedbackType = "Other"
)

// Category values cover the contact form plus content flagging.
const (
	CategoryFeedback      = "Feedback"
	CategoryPartnership   = "Partnership"
	CategoryGeneral       = "General"
	CategorySupport       = "Support"
	CategoryOther         = "Other"
	CategoryFlagIncorrect = "flag_incorrect"
	CategoryFlagUnsafe    = "flag_inappropriate"
	CategoryFlagOffTopic  = "flag_off_topic"
	CategoryFlagBug       = "flag_bug"
	CategoryFlagOther     = "flag_other"
)

var (
	ErrHumanCheckFailed = errors.New("human verification failed")
	ErrMessageRequired  = errors.New("message is required")
)

// Feedback is one submission from the contact, follow or flag forms.
type Feedback struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID           *snowflake.ID `json:"user_id" gorm:"index"`
	Name             string        `json:"name" gorm:"type:text;not null;default:''"`
	Email            string        `json:"email" gorm:"type:text;not null;default:''"`
	Phone            string        `json:"phone" gorm:"type:text;not null;default:''"`
	Message          string        `json:"message" gorm:"type:text;not null"`
	FeedbackType     FeedbackType  `json:"feedback_type" gorm:"type:text;not null;default:'Other'"`
	FeedbackCategory string        `json:"feedback_category" gorm:"type:text;not null;default:'Other'"`
	Target           string        `json:"target" gorm:"type:text;not null;default:''"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Feedback) TableName() string { return "feedbacks" }

// CreateFeedbackRequest is a raw form submission plus the Turnstile token
// and the submitter's address for verification.
type CreateFeedbackRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Message          string `json:"message" binding:"required"`
	FeedbackType     string `json:"feedback_type"`
	FeedbackCategory string `json:"feedback_category"`
	Target           string `json:"target"`
	TurnstileToken   string `json:"turnstile_token"`
	RemoteIP         string `json:"-"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, feedback *Feedback) error
	List(ctx context.Context, db *gorm.DB, limit int) ([]Feedback, error)
}

type Service interface {
	Create(ctx context.Context, req CreateFeedbackRequest) (*Feedback, error)
}
