package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	feedbackdomain "github.com/stokvelhq/patron/internal/feedback/domain"
	"github.com/stokvelhq/patron/internal/providers/slack"
	"github.com/stokvelhq/patron/internal/turnstile"
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
	Repo     feedbackdomain.Repository
	Verifier turnstile.HumanVerifier
	Slack    slack.Provider
}

type Service struct {
	channel  string
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     feedbackdomain.Repository
	verifier turnstile.HumanVerifier
	slack    slack.Provider
}

func NewService(p Params) feedbackdomain.Service {
	return &Service{
		channel:  p.Cfg.Slack.Channel,
		db:       p.DB,
		log:      p.Log.Named("feedback.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		verifier: p.Verifier,
		slack:    p.Slack,
	}
}

// Create verifies the submitter is human, persists the feedback and fires a
// best-effort Slack notification. Notification failure never fails the
// request.
func (s *Service) Create(ctx context.Context, req feedbackdomain.CreateFeedbackRequest) (*feedbackdomain.Feedback, error) {
	if ok, codes := s.verifier.Verify(ctx, req.TurnstileToken, req.RemoteIP); !ok {
		s.log.Info("feedback rejected by human verification",
			zap.Strings("error_codes", codes))
		return nil, feedbackdomain.ErrHumanCheckFailed
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, feedbackdomain.ErrMessageRequired
	}

	email := strings.TrimSpace(req.Email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("invalid email address: %w", err)
		}
	}

	feedback := &feedbackdomain.Feedback{
		ID:               s.genID.Generate(),
		Name:             strings.TrimSpace(req.Name),
		Email:            email,
		Phone:            strings.TrimSpace(req.Phone),
		Message:          message,
		FeedbackType:     normalizeType(req.FeedbackType),
		FeedbackCategory: normalizeCategory(req.FeedbackCategory),
		Target:           strings.TrimSpace(req.Target),
		CreatedAt:        s.clock.Now(),
		UpdatedAt:        s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, feedback); err != nil {
		return nil, err
	}

	go s.notify(feedback)

	return feedback, nil
}

// notify runs detached from the request; the submission is already durable.
func (s *Service) notify(feedback *feedbackdomain.Feedback) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	message := fmt.Sprintf("New %s feedback (%s)\nFrom: %s <%s>\nTarget: %s\n\n%s",
		feedback.FeedbackType, feedback.FeedbackCategory,
		feedback.Name, feedback.Email, feedback.Target, feedback.Message)

	if err := s.slack.PostMessage(ctx, s.channel, message); err != nil {
		s.log.Warn("slack notification failed",
			zap.Int64("feedback_id", int64(feedback.ID)), zap.Error(err))
	}
}

func normalizeType(raw string) feedbackdomain.FeedbackType {
	switch feedbackdomain.FeedbackType(strings.TrimSpace(raw)) {
	case feedbackdomain.TypeContact:
		return feedbackdomain.TypeContact
	case feedbackdomain.TypeFollow:
		return feedbackdomain.TypeFollow
	default:
		return feedbackdomain.TypeOther
	}
}

func normalizeCategory(raw string) string {
	switch strings.TrimSpace(raw) {
	case feedbackdomain.CategoryFeedback,
		feedbackdomain.CategoryPartnership,
		feedbackdomain.CategoryGeneral,
		feedbackdomain.CategorySupport,
		feedbackdomain.CategoryFlagIncorrect,
		feedbackdomain.CategoryFlagUnsafe,
		feedbackdomain.CategoryFlagOffTopic,
		feedbackdomain.CategoryFlagBug,
		feedbackdomain.CategoryFlagOther:
		return strings.TrimSpace(raw)
	default:
		return feedbackdomain.CategoryOther
	}
}
