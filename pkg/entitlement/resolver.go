package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/ledger"
)

// SubscriptionSource is the slice of the ledger the resolver needs.
type SubscriptionSource interface {
	FindActive(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error)
}

// LicenseSource is the slice of the license registry the resolver needs.
type LicenseSource interface {
	HasValidLicense(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Resolver answers "can this user access premium features right now" by
// consulting the subscription ledger, the license registry, or legacy
// flags, depending on the configured billing mode.
//
// The resolver never returns an error from the access-check hot path: a
// missing configuration auto-heals to a permissive default, and store
// failures degrade to "no premium access", never to an application error.
type Resolver struct {
	config        ConfigStore
	subscriptions SubscriptionSource
	licenses      LicenseSource
	flags         UserFlagStore
	cache         *Cache
	log           *slog.Logger
	now           func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache adds a decision cache, typically redis-backed with a short TTL.
func WithCache(cache *Cache) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

// WithResolverClock overrides the time source for tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates an entitlement resolver.
// Panics if any required dependency is nil to fail fast during
// initialization.
func NewResolver(config ConfigStore, subscriptions SubscriptionSource, licenses LicenseSource, flags UserFlagStore, log *slog.Logger, opts ...ResolverOption) *Resolver {
	if config == nil {
		panic("entitlement: ConfigStore is required")
	}
	if subscriptions == nil {
		panic("entitlement: SubscriptionSource is required")
	}
	if licenses == nil {
		panic("entitlement: LicenseSource is required")
	}
	if flags == nil {
		panic("entitlement: UserFlagStore is required")
	}
	if log == nil {
		log = slog.Default()
	}

	r := &Resolver{
		config:        config,
		subscriptions: subscriptions,
		licenses:      licenses,
		flags:         flags,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CanAccessPremium evaluates the access precedence, first match wins:
//
//  1. billing disabled        -> true, unconditionally
//  2. license-key mode        -> true iff the user holds a valid license
//  3. subscription/freemium   -> true iff an active subscription exists,
//     or the legacy flags still grant premium
//  4. otherwise               -> false
func (r *Resolver) CanAccessPremium(ctx context.Context, userID uuid.UUID) bool {
	cfg := r.loadConfig(ctx)
	if cfg.Mode == ModeDisabled {
		return true
	}

	if r.cache != nil {
		if granted, ok := r.cache.Get(ctx, userID); ok {
			return granted
		}
	}

	granted := r.resolve(ctx, cfg, userID)

	if r.cache != nil {
		r.cache.Set(ctx, userID, granted)
	}
	return granted
}

func (r *Resolver) resolve(ctx context.Context, cfg *AppConfig, userID uuid.UUID) bool {
	switch cfg.Mode {
	case ModeLicenseKey:
		ok, err := r.licenses.HasValidLicense(ctx, userID)
		if err != nil {
			r.log.ErrorContext(ctx, "license lookup failed, denying premium",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
			return false
		}
		return ok

	case ModeSubscription, ModeFreemium:
		sub, err := r.subscriptions.FindActive(ctx, userID)
		if err == nil && sub != nil {
			return true
		}
		if err != nil && !errors.Is(err, ledger.ErrNoActiveSubscription) {
			r.log.ErrorContext(ctx, "subscription lookup failed, falling back to legacy flags",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
		}

		flags, err := r.flags.Get(ctx, userID)
		if err != nil {
			if !errors.Is(err, ErrFlagsNotFound) {
				r.log.ErrorContext(ctx, "premium flag lookup failed, denying premium",
					slog.String("user_id", userID.String()),
					slog.String("error", err.Error()))
			}
			return false
		}
		return flags.GrantsAccess(r.now())
	}

	return false
}

// UserLimits returns unlimited limits for premium users (and for disabled
// billing), otherwise the configured free-tier limits with a conservative
// hardcoded fallback.
func (r *Resolver) UserLimits(ctx context.Context, userID uuid.UUID) FreeLimits {
	cfg := r.loadConfig(ctx)
	if cfg.Mode == ModeDisabled || r.CanAccessPremium(ctx, userID) {
		return UnlimitedLimits()
	}
	if cfg.FreeLimits.IsZero() {
		return ConservativeFreeLimits()
	}
	return cfg.FreeLimits
}

// Mode returns the currently configured billing mode.
func (r *Resolver) Mode(ctx context.Context) BillingMode {
	return r.loadConfig(ctx).Mode
}

// Invalidate drops any cached decision for the user. The webhook processor
// calls this after every entitlement-relevant state change.
func (r *Resolver) Invalidate(ctx context.Context, userID uuid.UUID) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, userID)
	}
}

// loadConfig reads the singleton configuration, creating the permissive
// default when absent. Store failures also degrade to the permissive
// default: failing open beats blocking legitimate users on a billing glitch.
func (r *Resolver) loadConfig(ctx context.Context) *AppConfig {
	cfg, err := r.config.Get(ctx)
	if err == nil {
		return cfg
	}

	def := DefaultAppConfig()
	if errors.Is(err, ErrConfigNotFound) {
		if saveErr := r.config.Save(ctx, def); saveErr != nil {
			r.log.WarnContext(ctx, "failed to persist default app configuration",
				slog.String("error", saveErr.Error()))
		}
		return def
	}

	r.log.ErrorContext(ctx, "app configuration lookup failed, using permissive default",
		slog.String("error", err.Error()))
	return def
}
