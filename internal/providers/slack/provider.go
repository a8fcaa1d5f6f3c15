// Package slack posts notifications to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/zap"
)

type Provider interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channel string, message string) error {
	return nil
}

// WebhookProvider delivers messages through a Slack incoming webhook URL.
// A missing URL makes every post a silent no-op.
type WebhookProvider struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger
}

func NewWebhookProvider(cfg config.SlackConfig, log *zap.Logger) *WebhookProvider {
	return &WebhookProvider{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.Named("slack"),
	}
}

func (p *WebhookProvider) PostMessage(ctx context.Context, channel string, message string) error {
	if p.webhookURL == "" {
		p.log.Debug("slack webhook url not configured; dropping message")
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
