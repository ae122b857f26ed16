// Package billing defines the payment-domain vocabulary and the provider
// interpreters that translate processor-specific webhook payloads into
// canonical actions.
//
// Five processors are supported: Stripe, Paddle, RevenueCat, LemonSqueezy
// and PayPal. Each implements the Interpreter interface: a pure function
// from raw payload bytes to a CanonicalEvent carrying a provider-agnostic
// action plus fully resolved cross-references (internal user ID, internal
// plan ID). Unknown event subtypes normalize to ActionIgnored rather than
// failing, so harmless deliveries never consume retry budget.
//
// Normalization failures are classified: a payload that cannot be mapped to
// a known user or plan is permanent (IsPermanent returns true) because
// redelivery cannot fix a missing mapping. The webhook processor uses this
// to park poison events immediately.
//
// Provider price identifiers are resolved through a PlanMap, loadable from a
// static map or a YAML file:
//
//	plans, err := billing.NewPlanMap(ctx, billing.NewYAMLPlanSource("plans.yaml"))
//	interp := billing.NewStripeInterpreter(plans)
//	event, err := interp.Normalize(payload)
//
// The package also contains hosted-checkout creation for Stripe and Paddle
// (CheckoutProvider). Checkout sessions embed the internal user and plan IDs
// as provider metadata, which is what makes later webhook deliveries
// resolvable back to the originating user.
package billing
