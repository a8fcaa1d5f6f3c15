package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	feedbackdomain "github.com/stokvelhq/patron/internal/feedback/domain"
	"github.com/stokvelhq/patron/internal/feedback/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubVerifier struct {
	ok    bool
	codes []string
}

func (v *stubVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, []string) {
	return v.ok, v.codes
}

type recordingSlack struct {
	mu       sync.Mutex
	messages []string
	posted   chan struct{}
}

func newRecordingSlack() *recordingSlack {
	return &recordingSlack{posted: make(chan struct{}, 8)}
}

func (s *recordingSlack) PostMessage(ctx context.Context, channel, message string) error {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	s.posted <- struct{}{}
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE feedbacks (
		id INTEGER PRIMARY KEY,
		user_id INTEGER,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		feedback_type TEXT NOT NULL DEFAULT 'Other',
		feedback_category TEXT NOT NULL DEFAULT 'Other',
		target TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)

	return db
}

func newTestService(t *testing.T, verifier *stubVerifier, slack *recordingSlack) feedbackdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	return NewService(Params{
		Cfg:      config.Config{Slack: config.SlackConfig{Channel: "#feedback"}},
		DB:       setupTestDB(t),
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Verifier: verifier,
		Slack:    slack,
	})
}

func TestCreatePersistsAndNotifies(t *testing.T) {
	slack := newRecordingSlack()
	svc := newTestService(t, &stubVerifier{ok: true}, slack)

	feedback, err := svc.Create(context.Background(), feedbackdomain.CreateFeedbackRequest{
		Name:             "  Thandi  ",
		Email:            "thandi@example.com",
		Message:          "  Love the project!  ",
		FeedbackType:     "Contact",
		FeedbackCategory: "Partnership",
		Target:           "/about",
	})
	require.NoError(t, err)
	require.NotNil(t, feedback)
	assert.Equal(t, "Thandi", feedback.Name)
	assert.Equal(t, "Love the project!", feedback.Message)
	assert.Equal(t, feedbackdomain.TypeContact, feedback.FeedbackType)
	assert.Equal(t, feedbackdomain.CategoryPartnership, feedback.FeedbackCategory)

	select {
	case <-slack.posted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a slack notification")
	}
	slack.mu.Lock()
	defer slack.mu.Unlock()
	require.Len(t, slack.messages, 1)
	assert.Contains(t, slack.messages[0], "thandi@example.com")
	assert.Contains(t, slack.messages[0], "Love the project!")
}

func TestCreateRejectsFailedHumanCheck(t *testing.T) {
	slack := newRecordingSlack()
	svc := newTestService(t, &stubVerifier{ok: false, codes: []string{"invalid-input-response"}}, slack)

	_, err := svc.Create(context.Background(), feedbackdomain.CreateFeedbackRequest{Message: "hello"})
	assert.ErrorIs(t, err, feedbackdomain.ErrHumanCheckFailed)
	assert.Empty(t, slack.posted)
}

func TestCreateRequiresMessage(t *testing.T) {
	svc := newTestService(t, &stubVerifier{ok: true}, newRecordingSlack())

	_, err := svc.Create(context.Background(), feedbackdomain.CreateFeedbackRequest{Message: "   "})
	assert.ErrorIs(t, err, feedbackdomain.ErrMessageRequired)
}

func TestCreateRejectsInvalidEmail(t *testing.T) {
	svc := newTestService(t, &stubVerifier{ok: true}, newRecordingSlack())

	_, err := svc.Create(context.Background(), feedbackdomain.CreateFeedbackRequest{
		Email:   "not-an-address",
		Message: "hello",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email")
}

func TestCreateNormalizesUnknownTypeAndCategory(t *testing.T) {
	svc := newTestService(t, &stubVerifier{ok: true}, newRecordingSlack())

	feedback, err := svc.Create(context.Background(), feedbackdomain.CreateFeedbackRequest{
		Message:          "flagging something",
		FeedbackType:     "Spam",
		FeedbackCategory: "definitely-not-a-category",
	})
	require.NoError(t, err)
	assert.Equal(t, feedbackdomain.TypeOther, feedback.FeedbackType)
	assert.Equal(t, feedbackdomain.CategoryOther, feedback.FeedbackCategory)
}
