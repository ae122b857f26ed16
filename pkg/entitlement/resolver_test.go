package entitlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitkit/pkg/entitlement"
	"github.com/dmitrymomot/fitkit/pkg/ledger"
)

// subscriptionSourceFunc adapts a function to entitlement.SubscriptionSource.
type subscriptionSourceFunc func(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error)

func (f subscriptionSourceFunc) FindActive(ctx context.Context, userID uuid.UUID) (*ledger.Subscription, error) {
	return f(ctx, userID)
}

// licenseSourceFunc adapts a function to entitlement.LicenseSource.
type licenseSourceFunc func(ctx context.Context, userID uuid.UUID) (bool, error)

func (f licenseSourceFunc) HasValidLicense(ctx context.Context, userID uuid.UUID) (bool, error) {
	return f(ctx, userID)
}

func noSubscriptions() subscriptionSourceFunc {
	return func(context.Context, uuid.UUID) (*ledger.Subscription, error) {
		return nil, ledger.ErrNoActiveSubscription
	}
}

func noLicenses() licenseSourceFunc {
	return func(context.Context, uuid.UUID) (bool, error) {
		return false, nil
	}
}

func configWith(t *testing.T, mode entitlement.BillingMode) *entitlement.MemoryConfigStore {
	t.Helper()
	store := entitlement.NewMemoryConfigStore()
	require.NoError(t, store.Save(context.Background(), &entitlement.AppConfig{Mode: mode}))
	return store
}

func TestResolver_DisabledModeGrantsEveryone(t *testing.T) {
	t.Parallel()

	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeDisabled),
		noSubscriptions(),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.True(t, resolver.CanAccessPremium(context.Background(), uuid.New()))
	assert.Equal(t, entitlement.ModeDisabled, resolver.Mode(context.Background()))
}

func TestResolver_LicenseKeyMode(t *testing.T) {
	t.Parallel()

	licensed := uuid.New()
	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeLicenseKey),
		noSubscriptions(),
		licenseSourceFunc(func(_ context.Context, userID uuid.UUID) (bool, error) {
			return userID == licensed, nil
		}),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.True(t, resolver.CanAccessPremium(context.Background(), licensed))
	assert.False(t, resolver.CanAccessPremium(context.Background(), uuid.New()))
}

func TestResolver_LicenseKeyMode_LookupErrorDenies(t *testing.T) {
	t.Parallel()

	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeLicenseKey),
		noSubscriptions(),
		licenseSourceFunc(func(context.Context, uuid.UUID) (bool, error) {
			return false, errors.New("store down")
		}),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.False(t, resolver.CanAccessPremium(context.Background(), uuid.New()))
}

func TestResolver_SubscriptionMode(t *testing.T) {
	t.Parallel()

	subscriber := uuid.New()
	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeSubscription),
		subscriptionSourceFunc(func(_ context.Context, userID uuid.UUID) (*ledger.Subscription, error) {
			if userID == subscriber {
				return &ledger.Subscription{UserID: userID}, nil
			}
			return nil, ledger.ErrNoActiveSubscription
		}),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.True(t, resolver.CanAccessPremium(context.Background(), subscriber))
	assert.False(t, resolver.CanAccessPremium(context.Background(), uuid.New()))
}

func TestResolver_SubscriptionMode_LegacyFlagsFallback(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	flagged := uuid.New()
	expired := uuid.New()
	unbounded := uuid.New()

	flags := entitlement.NewMemoryUserFlagStore()
	until := now.Add(time.Hour)
	require.NoError(t, flags.Set(context.Background(), flagged, entitlement.PremiumFlags{IsPremium: true, PremiumUntil: &until}))
	past := now.Add(-time.Hour)
	require.NoError(t, flags.Set(context.Background(), expired, entitlement.PremiumFlags{IsPremium: true, PremiumUntil: &past}))
	require.NoError(t, flags.Set(context.Background(), unbounded, entitlement.PremiumFlags{IsPremium: true}))

	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeSubscription),
		noSubscriptions(),
		noLicenses(),
		flags,
		nil,
		entitlement.WithResolverClock(func() time.Time { return now }),
	)

	assert.True(t, resolver.CanAccessPremium(context.Background(), flagged))
	assert.False(t, resolver.CanAccessPremium(context.Background(), expired))
	assert.True(t, resolver.CanAccessPremium(context.Background(), unbounded), "nil PremiumUntil means no expiry")
	assert.False(t, resolver.CanAccessPremium(context.Background(), uuid.New()))
}

func TestResolver_SubscriptionMode_LedgerErrorFallsBackToFlags(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	flags := entitlement.NewMemoryUserFlagStore()
	require.NoError(t, flags.Set(context.Background(), userID, entitlement.PremiumFlags{IsPremium: true}))

	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeSubscription),
		subscriptionSourceFunc(func(context.Context, uuid.UUID) (*ledger.Subscription, error) {
			return nil, errors.New("connection refused")
		}),
		noLicenses(),
		flags,
		nil,
	)

	assert.True(t, resolver.CanAccessPremium(context.Background(), userID))
}

func TestResolver_MissingConfigAutoHealsToDisabled(t *testing.T) {
	t.Parallel()

	store := entitlement.NewMemoryConfigStore()
	resolver := entitlement.NewResolver(
		store,
		noSubscriptions(),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	// First read creates the permissive default, so access is granted.
	assert.True(t, resolver.CanAccessPremium(context.Background(), uuid.New()))

	cfg, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entitlement.ModeDisabled, cfg.Mode)
	assert.Equal(t, entitlement.DefaultConfigID, cfg.ID)
}

func TestResolver_ConfigStoreFailureFailsOpen(t *testing.T) {
	t.Parallel()

	resolver := entitlement.NewResolver(
		failingConfigStore{},
		noSubscriptions(),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.True(t, resolver.CanAccessPremium(context.Background(), uuid.New()))
	assert.Equal(t, entitlement.ModeDisabled, resolver.Mode(context.Background()))
}

type failingConfigStore struct{}

func (failingConfigStore) Get(context.Context) (*entitlement.AppConfig, error) {
	return nil, errors.New("database unavailable")
}

func (failingConfigStore) Save(context.Context, *entitlement.AppConfig) error {
	return errors.New("database unavailable")
}

func TestResolver_UserLimits(t *testing.T) {
	t.Parallel()

	subscriber := uuid.New()
	configured := entitlement.FreeLimits{
		WorkoutsPerWeek:    5,
		CustomPrograms:     2,
		HistoryDays:        90,
		ActiveGoals:        3,
		ProgressPhotosPerM: 10,
	}

	store := entitlement.NewMemoryConfigStore()
	require.NoError(t, store.Save(context.Background(), &entitlement.AppConfig{
		Mode:       entitlement.ModeFreemium,
		FreeLimits: configured,
	}))

	resolver := entitlement.NewResolver(
		store,
		subscriptionSourceFunc(func(_ context.Context, userID uuid.UUID) (*ledger.Subscription, error) {
			if userID == subscriber {
				return &ledger.Subscription{UserID: userID}, nil
			}
			return nil, ledger.ErrNoActiveSubscription
		}),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.Equal(t, entitlement.UnlimitedLimits(), resolver.UserLimits(context.Background(), subscriber))
	assert.Equal(t, configured, resolver.UserLimits(context.Background(), uuid.New()))
}

func TestResolver_UserLimits_ConservativeFallback(t *testing.T) {
	t.Parallel()

	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeFreemium),
		noSubscriptions(),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.Equal(t, entitlement.ConservativeFreeLimits(), resolver.UserLimits(context.Background(), uuid.New()))
}

func TestResolver_UserLimits_DisabledBilling(t *testing.T) {
	t.Parallel()

	resolver := entitlement.NewResolver(
		configWith(t, entitlement.ModeDisabled),
		noSubscriptions(),
		noLicenses(),
		entitlement.NewMemoryUserFlagStore(),
		nil,
	)

	assert.Equal(t, entitlement.UnlimitedLimits(), resolver.UserLimits(context.Background(), uuid.New()))
}

func TestNewResolver_PanicsOnNilDeps(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		entitlement.NewResolver(nil, noSubscriptions(), noLicenses(), entitlement.NewMemoryUserFlagStore(), nil)
	})
	assert.Panics(t, func() {
		entitlement.NewResolver(entitlement.NewMemoryConfigStore(), nil, noLicenses(), entitlement.NewMemoryUserFlagStore(), nil)
	})
	assert.Panics(t, func() {
		entitlement.NewResolver(entitlement.NewMemoryConfigStore(), noSubscriptions(), nil, entitlement.NewMemoryUserFlagStore(), nil)
	})
	assert.Panics(t, func() {
		entitlement.NewResolver(entitlement.NewMemoryConfigStore(), noSubscriptions(), noLicenses(), nil, nil)
	})
}
