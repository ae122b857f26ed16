// Package webhook processes logged billing webhook deliveries.
//
// The Processor is the single writer of subscription state: it loads an
// event from the append-only log, normalizes it through the provider's
// interpreter, applies the resulting action to the ledger, payments and
// legacy flags, and finalizes the log entry. Idempotency lives at the
// event level, so replaying any event ID is safe.
//
// Failures split two ways. Permanent failures (a payload that cannot be
// parsed, a user that cannot be identified, a plan with no mapping) park
// the event immediately for manual review. Everything else counts against
// the event's retry budget and is reattempted by Drain.
//
// The package also carries the signature verification primitives shared by
// the HTTP handlers for providers without an SDK-level verifier.
package webhook
