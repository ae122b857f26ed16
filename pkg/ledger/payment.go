package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// PaymentStatus marks a charge as settled or failed.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is one settled or failed charge linked to a subscription.
// Payments are created by the webhook processor and never mutated after.
type Payment struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	Provider       billing.Provider
	Status         PaymentStatus
	TransactionID  string // provider's charge/transaction identifier
	Amount         int64  // smallest currency unit
	Currency       string
	CreatedAt      time.Time
}

// PaymentStore persists payment records.
type PaymentStore interface {
	Create(ctx context.Context, payment *Payment) error
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Payment, error)
}
