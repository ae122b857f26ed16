package license

import (
	"time"

	"github.com/google/uuid"
)

// License is a self-hosted entitlement token: a time-windowed key bound to
// at most one user.
type License struct {
	Key           string
	UserID        *uuid.UUID // nil until activated
	ValidFrom     time.Time
	ValidUntil    *time.Time // nil = unbounded
	ActivatedAt   *time.Time
	LastCheckedAt *time.Time
	CreatedAt     time.Time
}

// ValidAt reports whether the license window covers the given instant.
func (l *License) ValidAt(now time.Time) bool {
	if now.Before(l.ValidFrom) {
		return false
	}
	if l.ValidUntil != nil && now.After(*l.ValidUntil) {
		return false
	}
	return true
}

// Activated reports whether the license is bound to a user.
func (l *License) Activated() bool {
	return l.UserID != nil
}
