// Package entitlement decides whether a user can access premium features.
//
// The decision depends on the configured billing mode: billing can be
// switched off entirely, gated on license keys, or gated on an active
// subscription. Subscription and freemium modes also honor legacy premium
// flags set before the subscription ledger existed, so users who paid
// under the old scheme keep their access.
//
// The resolver is deliberately failure-tolerant. A missing configuration
// row is replaced with a permissive default, and any store failure on the
// access-check path degrades the answer rather than erroring: entitlement
// checks sit on hot request paths and must never take the application down.
//
// An optional redis-backed cache keeps repeated checks cheap; the webhook
// processor invalidates it whenever a subscription changes.
package entitlement
