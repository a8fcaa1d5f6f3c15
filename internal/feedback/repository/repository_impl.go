package repository

import (
	"context"

	feedbackdomain "github.com/stokvelhq/patron/internal/feedback/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() feedbackdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, feedback *feedbackdomain.Feedback) error {
	return db.WithContext(ctx).Create(feedback).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, limit int) ([]feedbackdomain.Feedback, error) {
	var feedbacks []feedbackdomain.Feedback
	q := db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&feedbacks).Error; err != nil {
		return nil, err
	}
	return feedbacks, nil
}
