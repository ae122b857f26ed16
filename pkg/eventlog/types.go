package eventlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// DefaultMaxRetries bounds how many times a transiently failed event is
// reattempted before it is parked.
const DefaultMaxRetries int8 = 3

// Event is one inbound webhook delivery. Rows are never deleted: the log is
// the audit trail and the unit of idempotency for the whole pipeline.
//
// Everything except the processing bookkeeping fields (Processed,
// ProcessedAt, RetryCount, Error, ResultingAction, RelatedPaymentID) is
// immutable after creation, and once Processed is true no further mutation
// occurs at all.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Provider  billing.Provider  `json:"provider"`
	EventType string            `json:"event_type"`
	Payload   []byte            `json:"payload,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`

	Processed        bool            `json:"processed"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	RetryCount       int8            `json:"retry_count"`
	MaxRetries       int8            `json:"max_retries"`
	Error            *string         `json:"error,omitempty"`
	ResultingAction  *billing.Action `json:"resulting_action,omitempty"`
	RelatedPaymentID *uuid.UUID      `json:"related_payment_id,omitempty"`
	RelatedUserID    *uuid.UUID      `json:"related_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Terminal reports whether the event will never be attempted again, whether
// due to success, permanent error, or exhausted retry budget.
func (e *Event) Terminal() bool {
	return e.Processed || e.RetryCount >= e.MaxRetries
}

// Outcome records the result of successfully processing an event.
type Outcome struct {
	Action    billing.Action
	PaymentID *uuid.UUID
	UserID    *uuid.UUID
}
