package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// Store defines persistence for subscription rows. The (userID, platform)
// pair is the unique key; Save is an atomic upsert on that key.
type Store interface {
	// Get returns the row for a (user, platform) pair, or
	// ErrSubscriptionNotFound.
	Get(ctx context.Context, userID uuid.UUID, platform billing.Platform) (*Subscription, error)

	// FindActive returns any row for the user, across platforms, with
	// status active. Returns ErrNoActiveSubscription when none exists.
	FindActive(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Save upserts the row keyed by (UserID, Platform). The write must be
	// atomic and must be rejected (returning false) when the stored row
	// carries a LastEventAt newer than the one being written. This is the
	// store-native serialization point; there is no application-level lock
	// across concurrent webhook handlers.
	Save(ctx context.Context, sub *Subscription) (applied bool, err error)
}
