package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/entitlement"
	"github.com/dmitrymomot/fitkit/pkg/eventlog"
	"github.com/dmitrymomot/fitkit/pkg/ledger"
)

// DefaultDrainLimit bounds how many parked-pending events one drain pass
// attempts.
const DefaultDrainLimit = 10

// Invalidator drops cached entitlement decisions after state changes.
// Satisfied by entitlement.Resolver.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// noopInvalidator is used when no cache is wired.
type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, uuid.UUID) {}

// Processor turns logged webhook deliveries into subscription state.
//
// Processing is idempotent at the event level: an already-processed event
// is a silent no-op, so the same event ID can be pushed through any number
// of times, by the inline ingress path or by the drain pass, without
// double-applying state.
type Processor struct {
	events       *eventlog.Log
	ledger       *ledger.Ledger
	payments     ledger.PaymentStore
	flags        entitlement.UserFlagStore
	interpreters map[billing.Provider]billing.Interpreter
	invalidator  Invalidator
	log          *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithInvalidator wires entitlement cache invalidation into processing.
func WithInvalidator(inv Invalidator) ProcessorOption {
	return func(p *Processor) {
		if inv != nil {
			p.invalidator = inv
		}
	}
}

// NewProcessor creates a webhook processor.
// Panics if any required dependency is nil to fail fast during
// initialization.
func NewProcessor(
	events *eventlog.Log,
	subs *ledger.Ledger,
	payments ledger.PaymentStore,
	flags entitlement.UserFlagStore,
	interpreters []billing.Interpreter,
	log *slog.Logger,
	opts ...ProcessorOption,
) *Processor {
	if events == nil {
		panic("webhook: event log is required")
	}
	if subs == nil {
		panic("webhook: subscription ledger is required")
	}
	if payments == nil {
		panic("webhook: payment store is required")
	}
	if flags == nil {
		panic("webhook: user flag store is required")
	}
	if len(interpreters) == 0 {
		panic("webhook: at least one interpreter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	byProvider := make(map[billing.Provider]billing.Interpreter, len(interpreters))
	for _, interp := range interpreters {
		byProvider[interp.Provider()] = interp
	}

	p := &Processor{
		events:       events,
		ledger:       subs,
		payments:     payments,
		flags:        flags,
		interpreters: byProvider,
		invalidator:  noopInvalidator{},
		log:          log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process normalizes and applies a single logged event.
//
// Permanent failures (unresolvable correlation, malformed payload, unmapped
// plan) park the event immediately. Transient failures increment the retry
// counter and leave the event for the drain pass. Events from a provider
// with no registered interpreter, stale events, and invalid-transition
// ledger outcomes are benign: the event is marked processed without
// changing state.
func (p *Processor) Process(ctx context.Context, eventID uuid.UUID) error {
	event, err := p.events.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Processed {
		return nil
	}

	interp, ok := p.interpreters[event.Provider]
	if !ok {
		// Providers the deployment intentionally ignores must not burn
		// retry budget or show up as failures.
		p.log.WarnContext(ctx, "no interpreter registered, ignoring event",
			slog.String("event_id", eventID.String()),
			slog.String("provider", string(event.Provider)))
		return p.events.MarkProcessed(ctx, eventID, eventlog.Outcome{Action: billing.ActionIgnored})
	}

	canonical, err := interp.Normalize(event.Payload)
	if err != nil {
		return p.fail(ctx, eventID, err)
	}

	if canonical.Action == billing.ActionIgnored {
		return p.events.MarkProcessed(ctx, eventID, eventlog.Outcome{Action: billing.ActionIgnored})
	}

	outcome, err := p.apply(ctx, canonical)
	if err != nil {
		return p.fail(ctx, eventID, err)
	}

	if err := p.events.MarkProcessed(ctx, eventID, outcome); err != nil {
		return err
	}

	p.log.InfoContext(ctx, "webhook event applied",
		slog.String("event_id", eventID.String()),
		slog.String("provider", string(event.Provider)),
		slog.String("action", string(outcome.Action)))

	return nil
}

// fail routes an error to the right bookkeeping path and propagates it.
func (p *Processor) fail(ctx context.Context, eventID uuid.UUID, cause error) error {
	if billing.IsPermanent(cause) {
		if err := p.events.MarkTerminalFailure(ctx, eventID, cause); err != nil {
			return errors.Join(cause, err)
		}
		return cause
	}
	if _, err := p.events.MarkFailed(ctx, eventID, cause); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (p *Processor) apply(ctx context.Context, ev *billing.CanonicalEvent) (eventlog.Outcome, error) {
	outcome := eventlog.Outcome{Action: ev.Action, UserID: &ev.UserID}

	switch ev.Action {
	case billing.ActionSubscriptionActivated, billing.ActionSubscriptionUpdated:
		if err := p.upsert(ctx, ev, ev.Status); err != nil {
			return outcome, err
		}
		p.syncFlags(ctx, ev.UserID, ev.Status, ev.PeriodEnd)

	case billing.ActionSubscriptionCancelled:
		if err := p.upsert(ctx, ev, billing.StatusCancelled); err != nil {
			return outcome, err
		}
		p.syncFlags(ctx, ev.UserID, billing.StatusCancelled, ev.PeriodEnd)

	case billing.ActionPaymentSucceeded:
		paymentID, err := p.recordPayment(ctx, ev, ledger.PaymentSucceeded)
		if err != nil {
			return outcome, err
		}
		outcome.PaymentID = paymentID
		// A settled charge on a paused subscription means billing recovered.
		p.transitionOnPayment(ctx, ev, billing.StatusPaused, billing.StatusActive)

	case billing.ActionPaymentFailed:
		paymentID, err := p.recordPayment(ctx, ev, ledger.PaymentFailed)
		if err != nil {
			return outcome, err
		}
		outcome.PaymentID = paymentID
		p.transitionOnPayment(ctx, ev, billing.StatusActive, billing.StatusPaused)
		p.transitionOnPayment(ctx, ev, billing.StatusTrial, billing.StatusPaused)
	}

	p.invalidator.Invalidate(ctx, ev.UserID)
	return outcome, nil
}

// upsert writes the subscription transition, swallowing benign outcomes.
// Out-of-order and duplicate deliveries surface as ErrStaleEvent or
// ErrInvalidTransition; neither warrants a retry.
func (p *Processor) upsert(ctx context.Context, ev *billing.CanonicalEvent, status billing.Status) error {
	_, err := p.ledger.Upsert(ctx, ledger.UpsertParams{
		UserID:      ev.UserID,
		Platform:    ev.Platform,
		PlanID:      ev.PlanID,
		Status:      status,
		PeriodEnd:   ev.PeriodEnd,
		EventTime:   ev.OccurredAt,
		Correlation: ev.Correlation,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrStaleEvent) || errors.Is(err, ledger.ErrInvalidTransition) {
			p.log.InfoContext(ctx, "subscription write skipped",
				slog.String("user_id", ev.UserID.String()),
				slog.String("reason", err.Error()))
			return nil
		}
		return err
	}
	return nil
}

// syncFlags mirrors the ledger outcome into the legacy flags so clients
// still reading them stay consistent.
func (p *Processor) syncFlags(ctx context.Context, userID uuid.UUID, status billing.Status, periodEnd *time.Time) {
	flags := entitlement.PremiumFlags{}
	if status == billing.StatusActive || status == billing.StatusTrial {
		flags = entitlement.PremiumFlags{IsPremium: true, PremiumUntil: periodEnd}
	}
	if err := p.flags.Set(ctx, userID, flags); err != nil {
		p.log.WarnContext(ctx, "failed to sync legacy premium flags",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
}

// recordPayment links the charge to the user's subscription row when one
// exists; payments arriving before the subscription row are kept unlinked.
func (p *Processor) recordPayment(ctx context.Context, ev *billing.CanonicalEvent, status ledger.PaymentStatus) (*uuid.UUID, error) {
	payment := &ledger.Payment{
		ID:        uuid.New(),
		UserID:    ev.UserID,
		Provider:  ev.Provider,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if ev.Payment != nil {
		payment.TransactionID = ev.Payment.TransactionID
		payment.Amount = ev.Payment.Amount
		payment.Currency = ev.Payment.Currency
	}

	if sub, err := p.ledger.Get(ctx, ev.UserID, ev.Platform); err == nil {
		payment.SubscriptionID = sub.ID
	}

	if err := p.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	return &payment.ID, nil
}

// transitionOnPayment flips subscription status in response to a payment
// outcome, but only when the row is currently in the expected state.
func (p *Processor) transitionOnPayment(ctx context.Context, ev *billing.CanonicalEvent, from, to billing.Status) {
	sub, err := p.ledger.Get(ctx, ev.UserID, ev.Platform)
	if err != nil || sub.Status != from {
		return
	}

	_, err = p.ledger.Upsert(ctx, ledger.UpsertParams{
		UserID:    ev.UserID,
		Platform:  ev.Platform,
		PlanID:    sub.PlanID,
		Status:    to,
		PeriodEnd: ev.PeriodEnd,
		EventTime: ev.OccurredAt,
	})
	if err != nil && !errors.Is(err, ledger.ErrStaleEvent) && !errors.Is(err, ledger.ErrInvalidTransition) {
		p.log.WarnContext(ctx, "payment-driven status change failed",
			slog.String("user_id", ev.UserID.String()),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.String("error", err.Error()))
		return
	}
	if err == nil {
		p.syncFlags(ctx, ev.UserID, to, ev.PeriodEnd)
	}
}

// Drain reprocesses unprocessed events oldest first. It is the recovery
// path for transient failures; scheduling is left to the caller, typically
// a ticker in the HTTP module or an external cron hitting an admin route.
func (p *Processor) Drain(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultDrainLimit
	}

	events, err := p.events.ListUnprocessed(ctx, limit)
	if err != nil {
		return 0, err
	}

	succeeded := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		if err := p.Process(ctx, event.ID); err != nil {
			p.log.WarnContext(ctx, "drain attempt failed",
				slog.String("event_id", event.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		succeeded++
	}

	if len(events) > 0 {
		p.log.InfoContext(ctx, "drain pass finished",
			slog.Int("attempted", len(events)),
			slog.Int("succeeded", succeeded))
	}
	return succeeded, nil
}
