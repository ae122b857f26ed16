package license

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool. The
// first-writer-wins binding is a single guarded UPDATE, so two users racing
// to activate the same key resolve atomically in the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed license store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("license: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*License, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT key, user_id, valid_from, valid_until, activated_at, last_checked_at, created_at
		FROM licenses WHERE key = $1`, key)

	lic, err := scanLicense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidLicense
	}
	return lic, err
}

func (s *PostgresStore) Create(ctx context.Context, lic *License) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO licenses (key, user_id, valid_from, valid_until, activated_at, last_checked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lic.Key, lic.UserID, lic.ValidFrom, lic.ValidUntil, lic.ActivatedAt, lic.LastCheckedAt, lic.CreatedAt)
	if err != nil {
		return errors.Join(ErrFailedToSaveLicense, err)
	}
	return nil
}

func (s *PostgresStore) Bind(ctx context.Context, key string, userID uuid.UUID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE licenses
		SET user_id = $2, activated_at = COALESCE(activated_at, $3)
		WHERE key = $1 AND (user_id IS NULL OR user_id = $2)`,
		key, userID, now)
	if err != nil {
		return errors.Join(ErrFailedToSaveLicense, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the key does not exist or another user holds the binding.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT TRUE FROM licenses WHERE key = $1`, key).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvalidLicense
			}
			return errors.Join(ErrFailedToSaveLicense, err)
		}
		return ErrAlreadyActivated
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, key string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE licenses SET last_checked_at = $2 WHERE key = $1`, key, now)
	if err != nil {
		return errors.Join(ErrFailedToSaveLicense, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidLicense
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*License, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, user_id, valid_from, valid_until, activated_at, last_checked_at, created_at
		FROM licenses WHERE user_id = $1`, userID)
	if err != nil {
		return nil, errors.Join(ErrFailedToListLicenses, err)
	}
	defer rows.Close()

	var licenses []*License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, errors.Join(ErrFailedToListLicenses, err)
		}
		licenses = append(licenses, lic)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToListLicenses, err)
	}
	return licenses, nil
}

func scanLicense(row pgx.Row) (*License, error) {
	var lic License
	err := row.Scan(&lic.Key, &lic.UserID, &lic.ValidFrom, &lic.ValidUntil,
		&lic.ActivatedAt, &lic.LastCheckedAt, &lic.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &lic, nil
}
