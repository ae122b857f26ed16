// Package ledger maintains the current subscription state per (user,
// platform) pair, plus the payment records linked to each subscription.
//
// The ledger is deliberately not a history store: a renewal or status
// change is an upsert on the unique (user, platform) key, and terminal rows
// restart in place when a fresh activation arrives. Full delivery history
// lives in the webhook event log.
//
// Two safeguards bound concurrent webhook processing. The status state
// machine rejects transitions the subscription lifecycle does not permit,
// and every write carries the provider's event timestamp: a write older
// than the stored row is rejected at the store level, so out-of-order
// deliveries cannot roll back newer state.
package ledger
