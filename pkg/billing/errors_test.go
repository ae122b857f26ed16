package billing_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	permanent := []error{
		billing.ErrUnresolvableCorrelation,
		billing.ErrMalformedPayload,
		billing.ErrPlanNotMapped,
		fmt.Errorf("%w: wrapped", billing.ErrPlanNotMapped),
		errors.Join(billing.ErrMalformedPayload, errors.New("syntax error")),
	}
	for _, err := range permanent {
		assert.True(t, billing.IsPermanent(err), "expected permanent: %v", err)
	}

	transient := []error{
		nil,
		errors.New("connection refused"),
		billing.ErrUnsupportedProvider,
	}
	for _, err := range transient {
		assert.False(t, billing.IsPermanent(err), "expected transient: %v", err)
	}
}

func TestProviderValid(t *testing.T) {
	t.Parallel()

	for _, p := range []billing.Provider{
		billing.ProviderStripe,
		billing.ProviderPaddle,
		billing.ProviderRevenueCat,
		billing.ProviderLemonSqueezy,
		billing.ProviderPayPal,
	} {
		assert.True(t, p.Valid())
	}

	assert.False(t, billing.Provider("venmo").Valid())
	assert.False(t, billing.Provider("").Valid())
}
