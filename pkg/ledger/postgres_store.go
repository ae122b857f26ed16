package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// PostgresStore implements Store on a pgx connection pool. The stale guard
// rides on the upsert itself: `ON CONFLICT ... WHERE last_event_at <=
// excluded.last_event_at` makes the compare-and-swap a single atomic
// statement, which is the serialization point spec'd for the (user,
// platform) row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed subscription store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("ledger: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID, platform billing.Platform) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, plan_id, platform, status, started_at, current_period_end,
		       cancelled_at, revenuecat_user_id, revenuecat_entitlement, last_event_at, updated_at
		FROM subscriptions WHERE user_id = $1 AND platform = $2`,
		userID, string(platform))

	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}

func (s *PostgresStore) FindActive(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, plan_id, platform, status, started_at, current_period_end,
		       cancelled_at, revenuecat_user_id, revenuecat_entitlement, last_event_at, updated_at
		FROM subscriptions WHERE user_id = $1 AND status = $2
		LIMIT 1`,
		userID, string(billing.StatusActive))

	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoActiveSubscription
	}
	return sub, err
}

func (s *PostgresStore) Save(ctx context.Context, sub *Subscription) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, platform, status, started_at,
		                           current_period_end, cancelled_at, revenuecat_user_id,
		                           revenuecat_entitlement, last_event_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			plan_id = excluded.plan_id,
			status = excluded.status,
			started_at = excluded.started_at,
			current_period_end = excluded.current_period_end,
			cancelled_at = excluded.cancelled_at,
			revenuecat_user_id = excluded.revenuecat_user_id,
			revenuecat_entitlement = excluded.revenuecat_entitlement,
			last_event_at = excluded.last_event_at,
			updated_at = excluded.updated_at
		WHERE subscriptions.last_event_at <= excluded.last_event_at`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Platform), string(sub.Status),
		sub.StartedAt, sub.CurrentPeriodEnd, sub.CancelledAt,
		nullableString(sub.Correlation.RevenueCatUserID),
		nullableString(sub.Correlation.RevenueCatEntitlement),
		sub.LastEventAt, sub.UpdatedAt)
	if err != nil {
		return false, errors.Join(ErrFailedToSaveSubscription, err)
	}

	return tag.RowsAffected() > 0, nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub         Subscription
		platform    string
		status      string
		rcUserID    *string
		rcEntitle   *string
	)

	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &platform, &status,
		&sub.StartedAt, &sub.CurrentPeriodEnd, &sub.CancelledAt,
		&rcUserID, &rcEntitle, &sub.LastEventAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sub.Platform = billing.Platform(platform)
	sub.Status = billing.Status(status)
	if rcUserID != nil {
		sub.Correlation.RevenueCatUserID = *rcUserID
	}
	if rcEntitle != nil {
		sub.Correlation.RevenueCatEntitlement = *rcEntitle
	}
	return &sub, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PostgresPaymentStore implements PaymentStore on a pgx connection pool.
type PostgresPaymentStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentStore creates a postgres-backed payment store.
func NewPostgresPaymentStore(pool *pgxpool.Pool) *PostgresPaymentStore {
	if pool == nil {
		panic("ledger: pgx pool is required")
	}
	return &PostgresPaymentStore{pool: pool}
}

func (s *PostgresPaymentStore) Create(ctx context.Context, payment *Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, subscription_id, user_id, provider, status, transaction_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.ID, payment.SubscriptionID, payment.UserID, string(payment.Provider),
		string(payment.Status), payment.TransactionID, payment.Amount, payment.Currency,
		payment.CreatedAt)
	if err != nil {
		return errors.Join(ErrFailedToSavePayment, err)
	}
	return nil
}

func (s *PostgresPaymentStore) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, user_id, provider, status, transaction_id, amount, currency, created_at
		FROM payments WHERE subscription_id = $1
		ORDER BY created_at ASC`, subscriptionID)
	if err != nil {
		return nil, errors.Join(ErrFailedToListPayments, err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var (
			p        Payment
			provider string
			status   string
		)
		if err := rows.Scan(&p.ID, &p.SubscriptionID, &p.UserID, &provider, &status,
			&p.TransactionID, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
			return nil, errors.Join(ErrFailedToListPayments, err)
		}
		p.Provider = billing.Provider(provider)
		p.Status = PaymentStatus(status)
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToListPayments, err)
	}
	return payments, nil
}
