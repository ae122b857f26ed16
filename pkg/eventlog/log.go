package eventlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// Log is the append-only webhook event log. It owns no business logic: it
// records deliveries, their outcomes and their retry bookkeeping, and feeds
// the drain pass.
type Log struct {
	store Store
	log   *slog.Logger
}

// New creates an event log backed by the given store.
// Panics on a nil store to fail fast during initialization.
func New(store Store, log *slog.Logger) *Log {
	if store == nil {
		panic("eventlog: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Log{store: store, log: log}
}

// Append records a new inbound delivery with processed=false and a zero
// retry count. The ingress boundary calls this after signature verification
// and before any processing.
func (l *Log) Append(ctx context.Context, provider billing.Provider, eventType string, payload []byte, headers map[string]string, relatedUserID *uuid.UUID) (*Event, error) {
	event := &Event{
		ID:            uuid.New(),
		Provider:      provider,
		EventType:     eventType,
		Payload:       payload,
		Headers:       headers,
		MaxRetries:    DefaultMaxRetries,
		RelatedUserID: relatedUserID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := l.store.Create(ctx, event); err != nil {
		return nil, err
	}

	l.log.InfoContext(ctx, "webhook event logged",
		slog.String("event_id", event.ID.String()),
		slog.String("provider", string(provider)),
		slog.String("event_type", eventType))

	return event, nil
}

// Get loads a single event.
func (l *Log) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	return l.store.Get(ctx, id)
}

// MarkProcessed finalizes a successfully handled event with its outcome.
func (l *Log) MarkProcessed(ctx context.Context, id uuid.UUID, outcome Outcome) error {
	return l.store.MarkProcessed(ctx, id, outcome)
}

// MarkFailed records a transient failure, incrementing the retry counter.
// The returned event reflects whether the retry budget is now exhausted.
func (l *Log) MarkFailed(ctx context.Context, id uuid.UUID, cause error) (*Event, error) {
	event, err := l.store.MarkFailed(ctx, id, cause.Error())
	if err != nil {
		return nil, err
	}

	if event.Terminal() {
		l.log.WarnContext(ctx, "webhook event exhausted retries",
			slog.String("event_id", id.String()),
			slog.Int("retry_count", int(event.RetryCount)),
			slog.String("error", cause.Error()))
	}

	return event, nil
}

// MarkTerminalFailure parks an event immediately. Used for permanent
// failures where retrying cannot change the result.
func (l *Log) MarkTerminalFailure(ctx context.Context, id uuid.UUID, cause error) error {
	l.log.WarnContext(ctx, "webhook event parked as permanent failure",
		slog.String("event_id", id.String()),
		slog.String("error", cause.Error()))
	return l.store.MarkTerminal(ctx, id, cause.Error())
}

// ListUnprocessed returns retryable events oldest first, bounded by limit.
func (l *Log) ListUnprocessed(ctx context.Context, limit int) ([]*Event, error) {
	return l.store.ListUnprocessed(ctx, limit)
}
