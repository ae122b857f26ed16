package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
)

// UpsertParams carries everything needed to create or transition the row for
// a (user, platform) pair.
type UpsertParams struct {
	UserID      uuid.UUID
	Platform    billing.Platform
	PlanID      string
	Status      billing.Status
	PeriodEnd   *time.Time
	EventTime   time.Time // provider event timestamp, drives the stale guard
	Correlation billing.Correlation
}

// Ledger maintains the current subscription state per (user, platform).
type Ledger struct {
	store Store
	log   *slog.Logger
}

// New creates a subscription ledger backed by the given store.
// Panics on a nil store to fail fast during initialization.
func New(store Store, log *slog.Logger) *Ledger {
	if store == nil {
		panic("ledger: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, log: log}
}

// Upsert creates or transitions the row for (UserID, Platform).
//
// A missing row is inserted with StartedAt set to now. An existing row is
// updated in place; CancelledAt is stamped iff the new status is cancelled
// and the previous one was not already terminal. An activation arriving for
// a terminal row restarts it: status returns to active (or trial) and
// StartedAt resets, since the ledger tracks current state, not history.
//
// Events older than the stored row are rejected with ErrStaleEvent; a
// status change the state machine forbids returns ErrInvalidTransition.
// Callers generally treat both as benign no-ops.
func (l *Ledger) Upsert(ctx context.Context, p UpsertParams) (*Subscription, error) {
	now := time.Now().UTC()

	existing, err := l.store.Get(ctx, p.UserID, p.Platform)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	sub := &Subscription{
		UserID:           p.UserID,
		Platform:         p.Platform,
		PlanID:           p.PlanID,
		Status:           p.Status,
		StartedAt:        now,
		LastEventAt:      p.EventTime,
		UpdatedAt:        now,
		Correlation:      p.Correlation,
		CurrentPeriodEnd: p.PeriodEnd,
	}

	if existing != nil {
		if p.EventTime.Before(existing.LastEventAt) {
			return nil, ErrStaleEvent
		}

		restart := existing.IsTerminal() && (p.Status == billing.StatusActive || p.Status == billing.StatusTrial)
		if !restart && !CanTransition(existing.Status, p.Status) {
			return nil, ErrInvalidTransition
		}

		sub.ID = existing.ID
		sub.StartedAt = existing.StartedAt
		sub.CancelledAt = existing.CancelledAt
		if restart {
			sub.StartedAt = now
			sub.CancelledAt = nil
		}
		if p.PeriodEnd == nil {
			sub.CurrentPeriodEnd = existing.CurrentPeriodEnd
		}
		// Correlation keys persist once learned.
		if sub.Correlation.RevenueCatUserID == "" {
			sub.Correlation.RevenueCatUserID = existing.Correlation.RevenueCatUserID
		}
		if sub.Correlation.RevenueCatEntitlement == "" {
			sub.Correlation.RevenueCatEntitlement = existing.Correlation.RevenueCatEntitlement
		}
		if p.Status == billing.StatusCancelled && !existing.IsTerminal() {
			sub.CancelledAt = &now
		}
	} else {
		sub.ID = uuid.New()
		if p.Status == billing.StatusCancelled {
			sub.CancelledAt = &now
		}
	}

	applied, err := l.store.Save(ctx, sub)
	if err != nil {
		return nil, errors.Join(ErrFailedToSaveSubscription, err)
	}
	if !applied {
		// A concurrent handler wrote newer state between our read and the
		// store's compare-and-swap.
		return nil, ErrStaleEvent
	}

	l.log.InfoContext(ctx, "subscription upserted",
		slog.String("user_id", p.UserID.String()),
		slog.String("platform", string(p.Platform)),
		slog.String("status", string(p.Status)))

	return sub, nil
}

// Get returns the row for a (user, platform) pair.
func (l *Ledger) Get(ctx context.Context, userID uuid.UUID, platform billing.Platform) (*Subscription, error) {
	return l.store.Get(ctx, userID, platform)
}

// FindActive returns any row for the user with status active, across
// platforms.
func (l *Ledger) FindActive(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return l.store.FindActive(ctx, userID)
}
