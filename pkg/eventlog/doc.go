// Package eventlog provides the append-only log of inbound webhook
// deliveries: the unit of idempotency and auditability for the billing
// pipeline.
//
// Every delivery is recorded before processing and never deleted. The
// processing lifecycle mutates only bookkeeping fields: a successful run
// finalizes the event with its outcome, a transient failure increments the
// retry counter, and a permanent failure (or an exhausted retry budget)
// parks the event as a terminal record for manual inspection.
//
// Two store implementations ship with the package: MemoryStore for tests
// and local development, and PostgresStore for production. The postgres
// store performs bookkeeping as guarded single-statement updates so the
// inline request path and the periodic drain pass can safely race on the
// same event.
package eventlog
