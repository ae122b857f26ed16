package billing

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies a payment processor that delivers webhook events.
type Provider string

const (
	ProviderStripe       Provider = "stripe"
	ProviderPaddle       Provider = "paddle"
	ProviderRevenueCat   Provider = "revenuecat"
	ProviderLemonSqueezy Provider = "lemonsqueezy"
	ProviderPayPal       Provider = "paypal"
)

// Valid reports whether the provider is one of the supported processors.
func (p Provider) Valid() bool {
	switch p {
	case ProviderStripe, ProviderPaddle, ProviderRevenueCat, ProviderLemonSqueezy, ProviderPayPal:
		return true
	}
	return false
}

// Platform is the storefront a subscription was purchased through.
// Each user holds at most one subscription per platform.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Status represents the current state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether the status ends the lifecycle of a ledger row.
// A later activation event restarts the row rather than transitioning it.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Action is the provider-agnostic classification of a webhook event's
// business meaning. Interpreters map each provider's vocabulary onto this set.
type Action string

const (
	ActionSubscriptionActivated Action = "subscription_activated"
	ActionSubscriptionUpdated   Action = "subscription_updated"
	ActionSubscriptionCancelled Action = "subscription_cancelled"
	ActionPaymentSucceeded      Action = "payment_succeeded"
	ActionPaymentFailed         Action = "payment_failed"

	// ActionIgnored marks event subtypes the system intentionally does not
	// handle. They complete as successful no-ops so they never consume the
	// retry budget.
	ActionIgnored Action = "ignored"
)

// Correlation carries provider-specific keys needed to match later
// deliveries back to the same subscription.
type Correlation struct {
	RevenueCatUserID      string
	RevenueCatEntitlement string
}

// PaymentDetails describes a settled or failed charge extracted from a
// payment event.
type PaymentDetails struct {
	TransactionID string
	Amount        int64 // smallest currency unit
	Currency      string
}

// CanonicalEvent is the self-contained result of normalizing a provider
// payload. From this point forward processing is provider-agnostic: all
// cross-references (user, plan) are already resolved.
type CanonicalEvent struct {
	Action        Action
	Provider      Provider
	ProviderEvent string // original provider event type
	UserID        uuid.UUID
	Platform      Platform
	PlanID        string
	Status        Status     // target status for subscription_* actions
	PeriodEnd     *time.Time // nil when the provider did not report one
	OccurredAt    time.Time  // provider event timestamp; guards stale writes
	Correlation   Correlation
	Payment       *PaymentDetails // set for payment_* actions only
}

// Interpreter normalizes a single provider's webhook payloads.
// Normalize must be a pure function of the payload: identical input yields
// an identical event and no side effects.
type Interpreter interface {
	Provider() Provider
	Normalize(payload []byte) (*CanonicalEvent, error)
}
