package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// PostgresStore implements Store on a pgx connection pool. All bookkeeping
// mutations are single UPDATE statements guarded by `NOT processed`, so a
// live handler and the drain pass racing on the same event cannot corrupt
// the record.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a postgres-backed event store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("eventlog: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrEventNil
	}

	headers, err := json.Marshal(event.Headers)
	if err != nil {
		return errors.Join(ErrFailedToCreateEvent, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO webhook_events (id, provider, event_type, payload, headers, max_retries, related_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, string(event.Provider), event.EventType, event.Payload, headers,
		event.MaxRetries, event.RelatedUserID, event.CreatedAt)
	if err != nil {
		return errors.Join(ErrFailedToCreateEvent, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, event_type, payload, headers, processed, processed_at,
		       retry_count, max_retries, error, resulting_action, related_payment_id,
		       related_user_id, created_at
		FROM webhook_events WHERE id = $1`, id)
	return scanEvent(row)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id uuid.UUID, outcome Outcome) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = NOW(), error = NULL,
		    resulting_action = $2, related_payment_id = $3,
		    related_user_id = COALESCE($4, related_user_id)
		WHERE id = $1 AND NOT processed`,
		id, string(outcome.Action), outcome.PaymentID, outcome.UserID)
	if err != nil {
		return errors.Join(ErrFailedToUpdateEvent, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrProcessed(ctx, id)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (*Event, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE webhook_events
		SET retry_count = retry_count + 1,
		    error = $2,
		    processed = (retry_count + 1 >= max_retries),
		    processed_at = CASE WHEN retry_count + 1 >= max_retries THEN NOW() ELSE processed_at END
		WHERE id = $1 AND NOT processed
		RETURNING id, provider, event_type, payload, headers, processed, processed_at,
		          retry_count, max_retries, error, resulting_action, related_payment_id,
		          related_user_id, created_at`,
		id, errMsg)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, s.missingOrProcessed(ctx, id)
		}
		return nil, err
	}
	return event, nil
}

func (s *PostgresStore) MarkTerminal(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET retry_count = max_retries, error = $2, processed = TRUE, processed_at = NOW()
		WHERE id = $1 AND NOT processed`,
		id, errMsg)
	if err != nil {
		return errors.Join(ErrFailedToUpdateEvent, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrProcessed(ctx, id)
	}
	return nil
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context, limit int) ([]*Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, event_type, payload, headers, processed, processed_at,
		       retry_count, max_retries, error, resulting_action, related_payment_id,
		       related_user_id, created_at
		FROM webhook_events
		WHERE NOT processed AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Join(ErrFailedToListEvents, err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToListEvents, err)
	}
	return events, nil
}

// missingOrProcessed distinguishes a nonexistent row from the idempotency
// guard firing on an already processed one.
func (s *PostgresStore) missingOrProcessed(ctx context.Context, id uuid.UUID) error {
	var processed bool
	err := s.pool.QueryRow(ctx, `SELECT processed FROM webhook_events WHERE id = $1`, id).Scan(&processed)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return errors.Join(ErrFailedToUpdateEvent, err)
	}
	if processed {
		return ErrAlreadyProcessed
	}
	return ErrFailedToUpdateEvent
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		event       Event
		provider    string
		headers     []byte
		errMsg      *string
		action      *string
		processedAt *time.Time
	)

	err := row.Scan(&event.ID, &provider, &event.EventType, &event.Payload, &headers,
		&event.Processed, &processedAt, &event.RetryCount, &event.MaxRetries,
		&errMsg, &action, &event.RelatedPaymentID, &event.RelatedUserID, &event.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrFailedToListEvents, err)
	}

	event.Provider = billing.Provider(provider)
	event.ProcessedAt = processedAt
	event.Error = errMsg
	if action != nil {
		a := billing.Action(*action)
		event.ResultingAction = &a
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &event.Headers); err != nil {
			return nil, errors.Join(ErrFailedToListEvents, err)
		}
	}
	return &event, nil
}
