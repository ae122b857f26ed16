package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PremiumFlags are the legacy flag-based premium representation, predating
// the subscription ledger. The resolver tolerates both representations so
// entitlement stays correct across the migration without a backfill.
type PremiumFlags struct {
	IsPremium    bool
	PremiumUntil *time.Time // nil = no expiry
}

// GrantsAccess reports whether the flags grant premium at the given time.
func (f PremiumFlags) GrantsAccess(now time.Time) bool {
	if !f.IsPremium {
		return false
	}
	return f.PremiumUntil == nil || f.PremiumUntil.After(now)
}

// UserFlagStore reads and writes the legacy premium flags. The webhook
// processor keeps them in sync with the ledger for backward compatibility;
// the resolver reads them as a fallback.
type UserFlagStore interface {
	Get(ctx context.Context, userID uuid.UUID) (PremiumFlags, error)
	Set(ctx context.Context, userID uuid.UUID, flags PremiumFlags) error
}
