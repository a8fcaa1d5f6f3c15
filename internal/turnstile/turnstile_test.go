package turnstile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stokvelhq/patron/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestVerifier(secret, verifyURL string) *Verifier {
	v := NewVerifier(config.TurnstileConfig{SecretKey: secret, Timeout: 2 * time.Second}, zap.NewNop())
	v.verifyURL = verifyURL
	return v
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "token-123", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ok, codes := newTestVerifier("s3cret", srv.URL).Verify(context.Background(), "token-123", "203.0.113.9")
	assert.True(t, ok)
	assert.Empty(t, codes)
}

func TestVerifyPropagatesCloudflareErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response","timeout-or-duplicate"]}`))
	}))
	defer srv.Close()

	ok, codes := newTestVerifier("s3cret", srv.URL).Verify(context.Background(), "stale-token", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"invalid-input-response", "timeout-or-duplicate"}, codes)
}

func TestVerifyShortCircuits(t *testing.T) {
	deadURL := "http://127.0.0.1:0"

	ok, codes := newTestVerifier("s3cret", deadURL).Verify(context.Background(), "  ", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"missing-input-response"}, codes)

	ok, codes = newTestVerifier("", deadURL).Verify(context.Background(), "token", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"missing-secret"}, codes)
}

func TestVerifyTreatsTransportFailureAsNotHuman(t *testing.T) {
	ok, codes := newTestVerifier("s3cret", "http://127.0.0.1:0").Verify(context.Background(), "token", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"request-error"}, codes)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ok, codes = newTestVerifier("s3cret", srv.URL).Verify(context.Background(), "token", "")
	assert.False(t, ok)
	assert.Equal(t, []string{"request-error"}, codes)
}
