// Package billing is the HTTP surface of the billing system.
//
// It mounts three route groups: provider webhook ingress (one
// signature-gated route per payment provider), the client-facing API
// (license activation, entitlement status, hosted checkout links) and an
// admin group with the drain trigger for external schedulers.
//
// The module holds no business logic. Handlers verify, translate and
// delegate to the eventlog, webhook, ledger, license and entitlement
// packages.
package billing
