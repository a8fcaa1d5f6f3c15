// Package turnstile verifies Cloudflare Turnstile response tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/zap"
)

// VerifyURL is Cloudflare's siteverify endpoint.
const VerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// HumanVerifier decides whether a request came from a human. Error codes
// explain a failed verification; any networking or parse issue is treated
// as not verified rather than an error.
type HumanVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, []string)
}

// NoOpVerifier accepts everything. Used in development and tests.
type NoOpVerifier struct{}

func (NoOpVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, []string) {
	return true, nil
}

// Verifier calls Cloudflare siteverify with a short timeout.
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	log       *zap.Logger
}

func NewVerifier(cfg config.TurnstileConfig, log *zap.Logger) *Verifier {
	return &Verifier{
		secret:    cfg.SecretKey,
		verifyURL: VerifyURL,
		client:    &http.Client{Timeout: cfg.Timeout},
		log:       log.Named("turnstile"),
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (bool, []string) {
	if strings.TrimSpace(token) == "" {
		return false, []string{"missing-input-response"}
	}
	if v.secret == "" {
		v.log.Warn("turnstile secret key is not configured; rejecting request")
		return false, []string{"missing-secret"}
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, []string{"request-error"}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn("turnstile verification request failed", zap.Error(err))
		return false, []string{"request-error"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.log.Warn("turnstile verification returned non-200",
			zap.Int("status", resp.StatusCode))
		return false, []string{"request-error"}
	}

	var payload verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		v.log.Warn("turnstile verification response unreadable", zap.Error(err))
		return false, []string{"request-error"}
	}

	if !payload.Success {
		v.log.Info("turnstile verification failed",
			zap.Strings("error_codes", payload.ErrorCodes))
	}
	return payload.Success, payload.ErrorCodes
}
