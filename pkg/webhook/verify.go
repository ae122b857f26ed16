package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// VerifyHMACSignature checks a hex-encoded HMAC-SHA256 signature computed
// over the raw request body. LemonSqueezy signs its webhooks this way with
// the store's signing secret in the X-Signature header.
//
// Uses constant-time comparison to prevent timing-based attacks.
func VerifyHMACSignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: hmac mismatch", ErrSignatureMismatch)
	}
	return nil
}

// VerifyAuthToken checks a shared-secret token in constant time.
// RevenueCat sends its configured authorization header value this way;
// PayPal deliveries are gated on the same scheme when certificate
// verification is not configured.
func VerifyAuthToken(expected, got string) error {
	if got == "" {
		return ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return fmt.Errorf("%w: token mismatch", ErrSignatureMismatch)
	}
	return nil
}
