package eventlog

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence contract for webhook events. Mutating
// methods must be atomic with respect to concurrent callers: a live request
// handler and the drain pass may race on the same event.
type Store interface {
	// Create persists a new event record.
	Create(ctx context.Context, event *Event) error

	// Get returns an event by ID, or ErrEventNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Event, error)

	// MarkProcessed finalizes a successfully handled event. It must refuse
	// to touch an already processed record (idempotency guard).
	MarkProcessed(ctx context.Context, id uuid.UUID, outcome Outcome) error

	// MarkFailed increments the retry counter and records the error. When
	// the new count reaches MaxRetries the event is also marked processed,
	// parking it permanently. Returns the updated event.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (*Event, error)

	// MarkTerminal parks an event immediately regardless of remaining retry
	// budget: retryCount jumps to maxRetries and processed becomes true.
	// Used for permanent failures that redelivery cannot fix.
	MarkTerminal(ctx context.Context, id uuid.UUID, errMsg string) error

	// ListUnprocessed returns events with processed=false and retries
	// remaining, oldest first, bounded by limit.
	ListUnprocessed(ctx context.Context, limit int) ([]*Event, error)
}
