// Package license provides self-hosted entitlement keys as an alternative
// to payment-provider subscriptions.
//
// A license is a time-windowed key bound to at most one user. Binding is
// first-writer-wins and enforced at the store level: re-activation by the
// same user succeeds silently, activation by anyone else fails with
// ErrAlreadyActivated. Validation checks the window and refreshes
// LastCheckedAt so operators can see which installs still check in.
package license
