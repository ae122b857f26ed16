package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PayPalConfig holds configuration for the PayPal integration. Webhook
// authenticity is checked against the configured webhook ID by the ingress
// boundary; full certificate verification is delegated to PayPal's
// verify-webhook-signature API by deployments that need it.
type PayPalConfig struct {
	WebhookID string `env:"PAYPAL_WEBHOOK_ID"`
}

// PayPalInterpreter normalizes PayPal billing webhook payloads.
type PayPalInterpreter struct {
	plans *PlanMap
}

// NewPayPalInterpreter creates a PayPal interpreter backed by the given plan
// mapping.
func NewPayPalInterpreter(plans *PlanMap) *PayPalInterpreter {
	if plans == nil {
		panic("billing: PlanMap is required")
	}
	return &PayPalInterpreter{plans: plans}
}

func (i *PayPalInterpreter) Provider() Provider { return ProviderPayPal }

func (i *PayPalInterpreter) Normalize(payload []byte) (*CanonicalEvent, error) {
	var event struct {
		ID         string `json:"id"`
		EventType  string `json:"event_type"`
		CreateTime string `json:"create_time"`
		Resource   struct {
			ID          string `json:"id"`
			PlanID      string `json:"plan_id"`
			CustomID    string `json:"custom_id"`
			Custom      string `json:"custom"` // older sale events
			Status      string `json:"status"`
			BillingInfo struct {
				NextBillingTime string `json:"next_billing_time"`
			} `json:"billing_info"`
			Amount struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"amount"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedPayload)
	}

	ce := &CanonicalEvent{
		Provider:      ProviderPayPal,
		ProviderEvent: event.EventType,
		Platform:      PlatformWeb,
		OccurredAt:    time.Now().UTC(),
	}
	if ts, err := time.Parse(time.RFC3339, event.CreateTime); err == nil {
		ce.OccurredAt = ts.UTC()
	}

	switch event.EventType {
	case "BILLING.SUBSCRIPTION.ACTIVATED", "BILLING.SUBSCRIPTION.CREATED":
		ce.Action = ActionSubscriptionActivated
		ce.Status = StatusActive
	case "BILLING.SUBSCRIPTION.UPDATED", "BILLING.SUBSCRIPTION.RE-ACTIVATED":
		ce.Action = ActionSubscriptionUpdated
		ce.Status = StatusActive
	case "BILLING.SUBSCRIPTION.SUSPENDED":
		ce.Action = ActionSubscriptionUpdated
		ce.Status = StatusPaused
	case "BILLING.SUBSCRIPTION.EXPIRED":
		ce.Action = ActionSubscriptionUpdated
		ce.Status = StatusExpired
	case "BILLING.SUBSCRIPTION.CANCELLED":
		ce.Action = ActionSubscriptionCancelled
		ce.Status = StatusCancelled
	case "PAYMENT.SALE.COMPLETED":
		ce.Action = ActionPaymentSucceeded
	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		ce.Action = ActionPaymentFailed
	default:
		ce.Action = ActionIgnored
		return ce, nil
	}

	rawUserID := event.Resource.CustomID
	if rawUserID == "" {
		rawUserID = event.Resource.Custom
	}
	if rawUserID == "" {
		return nil, fmt.Errorf("%w: custom_id missing on paypal event %s", ErrUnresolvableCorrelation, event.ID)
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: custom_id %q is not a valid user ID", ErrUnresolvableCorrelation, rawUserID)
	}
	ce.UserID = userID

	if ce.Action == ActionPaymentSucceeded || ce.Action == ActionPaymentFailed {
		ce.Payment = &PaymentDetails{
			TransactionID: event.Resource.ID,
			Currency:      event.Resource.Amount.Currency,
		}
		// PayPal reports decimal totals as strings ("9.99").
		if total, err := strconv.ParseFloat(event.Resource.Amount.Total, 64); err == nil {
			ce.Payment.Amount = int64(total * 100)
		}
		return ce, nil
	}

	if event.Resource.PlanID == "" {
		return nil, fmt.Errorf("%w: no plan_id on paypal event %s", ErrUnresolvableCorrelation, event.ID)
	}
	planID, err := i.plans.Resolve(ProviderPayPal, event.Resource.PlanID)
	if err != nil {
		return nil, err
	}
	ce.PlanID = planID

	if event.Resource.BillingInfo.NextBillingTime != "" {
		if ts, err := time.Parse(time.RFC3339, event.Resource.BillingInfo.NextBillingTime); err == nil {
			end := ts.UTC()
			ce.PeriodEnd = &end
		}
	}

	return ce, nil
}
