package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CheckoutRequest contains the data needed to create a hosted checkout
// session for an internal plan.
type CheckoutRequest struct {
	UserID     uuid.UUID
	PlanID     string // internal plan ID, resolved to the provider price
	Email      string // optional, pre-fills billing email
	SuccessURL string
	CancelURL  string
}

// CheckoutLink represents a hosted checkout session at the provider.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink is a pre-authenticated customer portal session where users can
// manage payment methods or cancel.
type PortalLink struct {
	URL       string
	CancelURL string
	ExpiresAt time.Time
}

// CheckoutProvider creates hosted checkout sessions. The subscription that
// results from a completed checkout must be resolvable back to the
// originating user via metadata embedded here.
type CheckoutProvider interface {
	Provider() Provider
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)
}
