package license

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store defines persistence for licenses. Bind must be atomic: two users
// racing to activate the same key must resolve to exactly one binding.
type Store interface {
	// Get returns the license for a key, or ErrInvalidLicense.
	Get(ctx context.Context, key string) (*License, error)

	// Create persists a newly issued license.
	Create(ctx context.Context, lic *License) error

	// Bind sets the owning user iff the license is unbound or already bound
	// to the same user (idempotent re-activation). Returns
	// ErrAlreadyActivated when bound to a different user.
	Bind(ctx context.Context, key string, userID uuid.UUID, now time.Time) error

	// Touch refreshes LastCheckedAt.
	Touch(ctx context.Context, key string, now time.Time) error

	// ListByUser returns all licenses bound to a user.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*License, error)
}

// Registry manages self-hosted license keys: issuance, activation and
// validity checks.
type Registry struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, for tests that pin expiry windows.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a license registry backed by the given store.
// Panics on a nil store to fail fast during initialization.
func NewRegistry(store Store, log *slog.Logger, opts ...Option) *Registry {
	if store == nil {
		panic("license: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue creates a new license with a freshly generated key. A nil
// validUntil leaves the license unbounded.
func (r *Registry) Issue(ctx context.Context, validFrom time.Time, validUntil *time.Time) (*License, error) {
	lic := &License{
		Key:        generateKey(),
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		CreatedAt:  r.now(),
	}
	if err := r.store.Create(ctx, lic); err != nil {
		return nil, err
	}
	return lic, nil
}

// Validate reports whether the key exists and its validity window covers
// the current time. As a side effect the license's LastCheckedAt is
// refreshed, giving operators a view of which installs still phone home.
func (r *Registry) Validate(ctx context.Context, key string) (bool, error) {
	lic, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrInvalidLicense) {
			return false, nil
		}
		return false, err
	}

	now := r.now()
	if err := r.store.Touch(ctx, key, now); err != nil {
		// A failed timestamp refresh must not turn a valid license into a
		// rejected one.
		r.log.WarnContext(ctx, "failed to refresh license last_checked_at",
			slog.String("error", err.Error()))
	}

	return lic.ValidAt(now), nil
}

// Activate binds the key to a user. Idempotent for the same user;
// a different user gets ErrAlreadyActivated regardless of call order.
func (r *Registry) Activate(ctx context.Context, key string, userID uuid.UUID) error {
	lic, err := r.store.Get(ctx, key)
	if err != nil {
		return err
	}

	now := r.now()
	if !lic.ValidAt(now) {
		return ErrLicenseExpired
	}

	if err := r.store.Bind(ctx, key, userID, now); err != nil {
		return err
	}

	r.log.InfoContext(ctx, "license activated",
		slog.String("user_id", userID.String()))
	return nil
}

// HasValidLicense reports whether the user owns at least one license whose
// window covers the current time. Used by the entitlement resolver in
// license-key billing mode.
func (r *Registry) HasValidLicense(ctx context.Context, userID uuid.UUID) (bool, error) {
	licenses, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}

	now := r.now()
	for _, lic := range licenses {
		if lic.ValidAt(now) {
			if err := r.store.Touch(ctx, lic.Key, now); err != nil {
				r.log.WarnContext(ctx, "failed to refresh license last_checked_at",
					slog.String("error", err.Error()))
			}
			return true, nil
		}
	}
	return false, nil
}

const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateKey produces a XXXX-XXXX-XXXX-XXXX key from an unambiguous
// alphabet (no 0/O, 1/I).
func generateKey() string {
	raw := make([]byte, 16)
	_, _ = rand.Read(raw)

	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[int(c)%len(keyAlphabet)])
	}
	return b.String()
}
