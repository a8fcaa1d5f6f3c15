package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the request header carrying the webhook HMAC digest.
const SignatureHeader = "X-Paystack-Signature"

// VerifySignature checks the HMAC-SHA512 hex digest of the raw request body
// against the supplied signature using a constant-time comparison. An
// absent, malformed or mismatched signature yields false, never an error.
func VerifySignature(rawBody []byte, signature string, secret []byte) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || len(secret) == 0 {
		return false
	}

	mac := hmac.New(sha512.New, secret)
	_, _ = mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}
