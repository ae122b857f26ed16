package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// Subscription is the current subscription state for one (user, platform)
// pair. The ledger holds only the current row per pair; history lives in the
// webhook event log.
type Subscription struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	PlanID           string
	Platform         billing.Platform
	Status           billing.Status
	StartedAt        time.Time
	CurrentPeriodEnd *time.Time
	CancelledAt      *time.Time
	Correlation      billing.Correlation

	// LastEventAt is the provider timestamp of the event that produced this
	// row state. Writes carrying an older timestamp are rejected so a
	// late-arriving stale delivery cannot overwrite newer state.
	LastEventAt time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive() bool {
	return s.Status == billing.StatusActive
}

// IsTerminal reports whether the row has reached a terminal status. A later
// activation restarts the row rather than transitioning it.
func (s *Subscription) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// allowedTransitions is the bounded status state machine:
//
//	active/trial -> paused     (payment failure)
//	paused       -> active     (payment recovered)
//	active/trial/paused -> cancelled
//	active/trial -> expired    (period end without renewal)
//
// Terminal statuses have no outgoing edges; restarts happen through a fresh
// activating upsert, not a transition.
var allowedTransitions = map[billing.Status][]billing.Status{
	billing.StatusActive: {billing.StatusActive, billing.StatusTrial, billing.StatusPaused, billing.StatusCancelled, billing.StatusExpired},
	billing.StatusTrial:  {billing.StatusTrial, billing.StatusActive, billing.StatusPaused, billing.StatusCancelled, billing.StatusExpired},
	billing.StatusPaused: {billing.StatusPaused, billing.StatusActive, billing.StatusCancelled},
}

// CanTransition reports whether the state machine permits moving from one
// status to another on an existing row.
func CanTransition(from, to billing.Status) bool {
	targets, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
