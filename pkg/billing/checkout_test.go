package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/config"
)

func checkoutPlans(t *testing.T) *billing.PlanMap {
	t.Helper()
	plans, err := billing.NewPlanMap(context.Background(), billing.NewInMemPlanSource(map[billing.Provider]map[string]string{
		billing.ProviderStripe: {"price_123": "premium_monthly"},
		billing.ProviderPaddle: {"pri_123": "premium_monthly"},
	}))
	require.NoError(t, err)
	return plans
}

func TestNewStripeCheckout_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := billing.NewStripeCheckout(billing.StripeConfig{}, checkoutPlans(t))
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)
}

func TestNewPaddleCheckout_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := billing.NewPaddleCheckout(billing.PaddleConfig{}, checkoutPlans(t))
	assert.ErrorIs(t, err, billing.ErrMissingAPIKey)
}

func TestNewPaddleCheckout_InvalidEnvironment(t *testing.T) {
	t.Parallel()

	cfg := billing.PaddleConfig{APIKey: "pdl_test_key", Environment: "staging"}
	_, err := billing.NewPaddleCheckout(cfg, checkoutPlans(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid paddle environment")
}

// Provider secrets are optional at boot so a deployment can enable only the
// payment providers it actually uses. Unconfigured ones are rejected later,
// at construction or signature verification.
func TestProviderConfigsLoadWithoutSecrets(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.Load(&billing.StripeConfig{}))
	require.NoError(t, config.Load(&billing.PaddleConfig{}))
	require.NoError(t, config.Load(&billing.RevenueCatConfig{}))
	require.NoError(t, config.Load(&billing.LemonSqueezyConfig{}))
	require.NoError(t, config.Load(&billing.PayPalConfig{}))
}
