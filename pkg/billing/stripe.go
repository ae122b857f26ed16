package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
)

// StripeConfig holds configuration for the Stripe integration.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_API_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// StripeInterpreter normalizes Stripe webhook payloads. The payload is the
// full event JSON as delivered, already signature-verified by the ingress
// boundary.
type StripeInterpreter struct {
	plans *PlanMap
}

// NewStripeInterpreter creates a Stripe interpreter backed by the given plan
// mapping.
func NewStripeInterpreter(plans *PlanMap) *StripeInterpreter {
	if plans == nil {
		panic("billing: PlanMap is required")
	}
	return &StripeInterpreter{plans: plans}
}

func (i *StripeInterpreter) Provider() Provider { return ProviderStripe }

func (i *StripeInterpreter) Normalize(payload []byte) (*CanonicalEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedPayload)
	}

	ce := &CanonicalEvent{
		Provider:      ProviderStripe,
		ProviderEvent: string(event.Type),
		Platform:      PlatformWeb,
		OccurredAt:    time.Unix(event.Created, 0).UTC(),
	}

	switch event.Type {
	case "customer.subscription.created", "checkout.session.completed":
		ce.Action = ActionSubscriptionActivated
	case "customer.subscription.updated":
		ce.Action = ActionSubscriptionUpdated
	case "customer.subscription.deleted":
		ce.Action = ActionSubscriptionCancelled
	case "invoice.payment_succeeded":
		ce.Action = ActionPaymentSucceeded
	case "invoice.payment_failed":
		ce.Action = ActionPaymentFailed
	default:
		ce.Action = ActionIgnored
		return ce, nil
	}

	switch {
	case event.Type == "checkout.session.completed":
		if err := i.fillFromCheckoutSession(ce, event.Data.Raw); err != nil {
			return nil, err
		}
	case ce.Action == ActionPaymentSucceeded || ce.Action == ActionPaymentFailed:
		if err := i.fillFromInvoice(ce, event.Data.Raw); err != nil {
			return nil, err
		}
	default:
		if err := i.fillFromSubscription(ce, event.Data.Raw); err != nil {
			return nil, err
		}
	}

	return ce, nil
}

func (i *StripeInterpreter) fillFromSubscription(ce *CanonicalEvent, raw json.RawMessage) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return errors.Join(ErrMalformedPayload, err)
	}

	userID, ok := sub.Metadata["user_id"]
	if !ok || userID == "" {
		return fmt.Errorf("%w: metadata.user_id missing on subscription %s", ErrUnresolvableCorrelation, sub.ID)
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: metadata.user_id %q is not a valid user ID", ErrUnresolvableCorrelation, userID)
	}
	ce.UserID = parsed

	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return fmt.Errorf("%w: subscription %s has no price items", ErrUnresolvableCorrelation, sub.ID)
	}
	planID, err := i.plans.Resolve(ProviderStripe, sub.Items.Data[0].Price.ID)
	if err != nil {
		return err
	}
	ce.PlanID = planID

	ce.Status = mapStripeStatus(sub.Status)
	if ce.Action == ActionSubscriptionCancelled {
		ce.Status = StatusCancelled
	}

	// current_period_end moved around between stripe-go versions, so it is
	// read from the raw JSON (top level first, then the subscription item).
	if end := stripePeriodEnd(raw); end != nil {
		ce.PeriodEnd = end
	}

	return nil
}

func (i *StripeInterpreter) fillFromCheckoutSession(ce *CanonicalEvent, raw json.RawMessage) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return errors.Join(ErrMalformedPayload, err)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		return fmt.Errorf("%w: metadata.user_id missing on checkout session %s", ErrUnresolvableCorrelation, session.ID)
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: metadata.user_id %q is not a valid user ID", ErrUnresolvableCorrelation, userID)
	}
	ce.UserID = parsed

	// Checkout sessions created by this module embed the internal plan ID
	// directly, so no price lookup is needed.
	planID := session.Metadata["plan_id"]
	if planID == "" {
		return fmt.Errorf("%w: metadata.plan_id missing on checkout session %s", ErrUnresolvableCorrelation, session.ID)
	}
	ce.PlanID = planID
	ce.Status = StatusActive

	return nil
}

func (i *StripeInterpreter) fillFromInvoice(ce *CanonicalEvent, raw json.RawMessage) error {
	var invoice struct {
		ID                  string `json:"id"`
		AmountPaid          int64  `json:"amount_paid"`
		AmountDue           int64  `json:"amount_due"`
		Currency            string `json:"currency"`
		SubscriptionDetails struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"subscription_details"`
		Parent struct {
			SubscriptionDetails struct {
				Metadata map[string]string `json:"metadata"`
			} `json:"subscription_details"`
		} `json:"parent"`
	}
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return errors.Join(ErrMalformedPayload, err)
	}

	userID := invoice.SubscriptionDetails.Metadata["user_id"]
	if userID == "" {
		userID = invoice.Parent.SubscriptionDetails.Metadata["user_id"]
	}
	if userID == "" {
		return fmt.Errorf("%w: no user metadata on invoice %s", ErrUnresolvableCorrelation, invoice.ID)
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: invoice user metadata %q is not a valid user ID", ErrUnresolvableCorrelation, userID)
	}
	ce.UserID = parsed

	amount := invoice.AmountPaid
	if ce.Action == ActionPaymentFailed {
		amount = invoice.AmountDue
	}
	ce.Payment = &PaymentDetails{
		TransactionID: invoice.ID,
		Amount:        amount,
		Currency:      invoice.Currency,
	}

	return nil
}

func mapStripeStatus(status stripe.SubscriptionStatus) Status {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return StatusTrial
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return StatusPaused
	case stripe.SubscriptionStatusCanceled:
		return StatusCancelled
	default:
		return StatusActive
	}
}

// stripePeriodEnd extracts current_period_end from raw subscription JSON,
// checking the top level first and falling back to the first item.
func stripePeriodEnd(raw json.RawMessage) *time.Time {
	var probe struct {
		CurrentPeriodEnd int64 `json:"current_period_end"`
		Items            struct {
			Data []struct {
				CurrentPeriodEnd int64 `json:"current_period_end"`
			} `json:"data"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}

	ts := probe.CurrentPeriodEnd
	if ts == 0 && len(probe.Items.Data) > 0 {
		ts = probe.Items.Data[0].CurrentPeriodEnd
	}
	if ts == 0 {
		return nil
	}

	end := time.Unix(ts, 0).UTC()
	return &end
}

// StripeCheckout creates hosted checkout sessions in Stripe. It embeds the
// internal user and plan IDs as metadata so later webhook deliveries resolve
// back to the originating user without extra lookups.
type StripeCheckout struct {
	client *stripe.Client
	plans  *PlanMap
}

// NewStripeCheckout creates a checkout-link provider for Stripe.
func NewStripeCheckout(cfg StripeConfig, plans *PlanMap) (*StripeCheckout, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if plans == nil {
		panic("billing: PlanMap is required")
	}
	return &StripeCheckout{
		client: stripe.NewClient(cfg.APIKey),
		plans:  plans,
	}, nil
}

func (c *StripeCheckout) Provider() Provider { return ProviderStripe }

// CreateCheckoutLink creates a subscription-mode checkout session for the
// given internal plan.
func (c *StripeCheckout) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	priceID, err := c.plans.PriceFor(ProviderStripe, req.PlanID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID.String()),
	}
	params.AddMetadata("user_id", req.UserID.String())
	params.AddMetadata("plan_id", req.PlanID)

	// Subscription metadata is what webhook normalization reads, so the
	// correlation keys must be present on the subscription itself.
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata("user_id", req.UserID.String())

	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	session, err := c.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}
	if session.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       session.URL,
		SessionID: session.ID,
		ExpiresAt: time.Unix(session.ExpiresAt, 0).UTC(),
	}, nil
}
