package billing

import "errors"

var (
	// ErrUnresolvableCorrelation indicates the payload cannot be mapped to a
	// known user or plan. Retrying cannot fix a missing mapping, so the
	// processor terminalizes these immediately.
	ErrUnresolvableCorrelation = errors.New("payload cannot be resolved to a known user or plan")

	// ErrMalformedPayload indicates the payload is not valid JSON or is
	// missing the provider's event-type field. Permanent for the same reason.
	ErrMalformedPayload = errors.New("malformed provider payload")

	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	ErrPlanNotMapped       = errors.New("provider price has no internal plan mapping")

	ErrMissingAPIKey        = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret = errors.New("billing provider webhook secret is required")
	ErrNoCheckoutURL        = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL          = errors.New("no portal URL returned from provider")
)

// IsPermanent reports whether a normalization failure can never succeed on
// retry. The webhook processor parks such events instead of burning their
// retry budget.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnresolvableCorrelation) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrPlanNotMapped)
}
