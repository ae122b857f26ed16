package ledger

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoActiveSubscription = errors.New("no active subscription for user")

	// ErrStaleEvent indicates an upsert carried a provider timestamp older
	// than the stored row. The write is rejected; callers treat this as a
	// benign no-op since newer state already won.
	ErrStaleEvent = errors.New("event is older than current subscription state")

	// ErrInvalidTransition indicates the status state machine does not
	// permit the requested change on an existing row.
	ErrInvalidTransition = errors.New("invalid subscription status transition")

	ErrFailedToSaveSubscription = errors.New("failed to save subscription")
	ErrFailedToSavePayment      = errors.New("failed to save payment")
	ErrFailedToListPayments     = errors.New("failed to list payments")
)
