package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfigStore persists the singleton application configuration in
// the app_configuration table. Free limits are stored as JSONB so new
// limit fields do not require a migration.
type PostgresConfigStore struct {
	pool *pgxpool.Pool
}

// NewPostgresConfigStore creates a ConfigStore backed by the given pool.
// Panics if pool is nil.
func NewPostgresConfigStore(pool *pgxpool.Pool) *PostgresConfigStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	return &PostgresConfigStore{pool: pool}
}

func (s *PostgresConfigStore) Get(ctx context.Context) (*AppConfig, error) {
	const query = `
		SELECT id, mode, free_limits, updated_at
		FROM app_configuration
		WHERE id = $1`

	var (
		cfg       AppConfig
		rawLimits []byte
	)
	err := s.pool.QueryRow(ctx, query, DefaultConfigID).
		Scan(&cfg.ID, &cfg.Mode, &rawLimits, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, errors.Join(ErrConfigNotFound, err)
	}

	if len(rawLimits) > 0 {
		if err := json.Unmarshal(rawLimits, &cfg.FreeLimits); err != nil {
			return nil, errors.Join(ErrConfigNotFound, err)
		}
	}
	return &cfg, nil
}

func (s *PostgresConfigStore) Save(ctx context.Context, cfg *AppConfig) error {
	if cfg == nil {
		return ErrFailedToSaveConfig
	}

	rawLimits, err := json.Marshal(cfg.FreeLimits)
	if err != nil {
		return errors.Join(ErrFailedToSaveConfig, err)
	}

	const query = `
		INSERT INTO app_configuration (id, mode, free_limits, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			mode = excluded.mode,
			free_limits = excluded.free_limits,
			updated_at = excluded.updated_at`

	if _, err := s.pool.Exec(ctx, query, DefaultConfigID, cfg.Mode, rawLimits, time.Now().UTC()); err != nil {
		return errors.Join(ErrFailedToSaveConfig, err)
	}
	return nil
}

// PostgresUserFlagStore persists legacy premium flags in the
// user_billing_flags table.
type PostgresUserFlagStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserFlagStore creates a UserFlagStore backed by the given pool.
// Panics if pool is nil.
func NewPostgresUserFlagStore(pool *pgxpool.Pool) *PostgresUserFlagStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	return &PostgresUserFlagStore{pool: pool}
}

func (s *PostgresUserFlagStore) Get(ctx context.Context, userID uuid.UUID) (PremiumFlags, error) {
	const query = `
		SELECT is_premium, premium_until
		FROM user_billing_flags
		WHERE user_id = $1`

	var flags PremiumFlags
	err := s.pool.QueryRow(ctx, query, userID).Scan(&flags.IsPremium, &flags.PremiumUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PremiumFlags{}, ErrFlagsNotFound
		}
		return PremiumFlags{}, errors.Join(ErrFlagsNotFound, err)
	}
	return flags, nil
}

func (s *PostgresUserFlagStore) Set(ctx context.Context, userID uuid.UUID, flags PremiumFlags) error {
	const query = `
		INSERT INTO user_billing_flags (user_id, is_premium, premium_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			is_premium = excluded.is_premium,
			premium_until = excluded.premium_until,
			updated_at = excluded.updated_at`

	if _, err := s.pool.Exec(ctx, query, userID, flags.IsPremium, flags.PremiumUntil, time.Now().UTC()); err != nil {
		return errors.Join(ErrFailedToSaveFlags, err)
	}
	return nil
}
