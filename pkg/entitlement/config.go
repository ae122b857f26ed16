package entitlement

import (
	"context"
	"time"
)

// BillingMode selects which entitlement strategy is active process-wide.
type BillingMode string

const (
	// ModeDisabled means no paywall at all: every user has premium access.
	// The safe default for self-hosted installs.
	ModeDisabled BillingMode = "disabled"

	// ModeLicenseKey grants premium to users holding a valid license.
	ModeLicenseKey BillingMode = "license_key"

	// ModeSubscription grants premium to users with an active subscription
	// or legacy premium flags.
	ModeSubscription BillingMode = "subscription"

	// ModeFreemium behaves like ModeSubscription but free users keep
	// limited access instead of none.
	ModeFreemium BillingMode = "freemium"
)

// DefaultConfigID is the singleton row key for the app configuration.
const DefaultConfigID = "default"

// AppConfig is the process-wide billing configuration singleton. It is
// created lazily with permissive defaults on first read if absent.
type AppConfig struct {
	ID         string
	Mode       BillingMode
	FreeLimits FreeLimits
	UpdatedAt  time.Time
}

// DefaultAppConfig returns the permissive configuration used when none has
// been stored yet: billing disabled, unlimited limits. Failing open here is
// deliberate; a billing glitch must not lock out legitimate users.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		ID:         DefaultConfigID,
		Mode:       ModeDisabled,
		FreeLimits: UnlimitedLimits(),
		UpdatedAt:  time.Now().UTC(),
	}
}

// ConfigStore persists the AppConfig singleton.
type ConfigStore interface {
	// Get returns the configuration, or ErrConfigNotFound when none has
	// been stored yet.
	Get(ctx context.Context) (*AppConfig, error)

	// Save creates or replaces the configuration.
	Save(ctx context.Context, cfg *AppConfig) error
}
