package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitkit/pkg/webhook"
)

func signHex(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifyHMACSignature(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	body := []byte(`{"meta":{"event_name":"subscription_created"}}`)

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()
		err := webhook.VerifyHMACSignature(secret, body, signHex(secret, body))
		require.NoError(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		err := webhook.VerifyHMACSignature(secret, body, signHex("other_secret", body))
		require.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("tampered body", func(t *testing.T) {
		t.Parallel()
		sig := signHex(secret, body)
		err := webhook.VerifyHMACSignature(secret, []byte(`{"meta":{}}`), sig)
		require.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		err := webhook.VerifyHMACSignature(secret, body, "")
		require.ErrorIs(t, err, webhook.ErrMissingSignature)
	})
}

func TestVerifyAuthToken(t *testing.T) {
	t.Parallel()

	t.Run("matching token", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, webhook.VerifyAuthToken("Bearer secret-token", "Bearer secret-token"))
	})

	t.Run("wrong token", func(t *testing.T) {
		t.Parallel()
		err := webhook.VerifyAuthToken("Bearer secret-token", "Bearer guessed")
		require.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		err := webhook.VerifyAuthToken("Bearer secret-token", "")
		require.ErrorIs(t, err, webhook.ErrMissingSignature)
	})
}
