package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// LemonSqueezyConfig holds configuration for the LemonSqueezy integration.
type LemonSqueezyConfig struct {
	SigningSecret string `env:"LEMONSQUEEZY_SIGNING_SECRET"`
}

// LemonSqueezyInterpreter normalizes LemonSqueezy webhook payloads.
type LemonSqueezyInterpreter struct {
	plans *PlanMap
}

// NewLemonSqueezyInterpreter creates a LemonSqueezy interpreter backed by
// the given plan mapping.
func NewLemonSqueezyInterpreter(plans *PlanMap) *LemonSqueezyInterpreter {
	if plans == nil {
		panic("billing: PlanMap is required")
	}
	return &LemonSqueezyInterpreter{plans: plans}
}

func (i *LemonSqueezyInterpreter) Provider() Provider { return ProviderLemonSqueezy }

func (i *LemonSqueezyInterpreter) Normalize(payload []byte) (*CanonicalEvent, error) {
	var envelope struct {
		Meta struct {
			EventName  string            `json:"event_name"`
			CustomData map[string]string `json:"custom_data"`
		} `json:"meta"`
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Status    string  `json:"status"`
				VariantID int64   `json:"variant_id"`
				RenewsAt  *string `json:"renews_at"`
				EndsAt    *string `json:"ends_at"`
				UpdatedAt string  `json:"updated_at"`
				TotalUSD  int64   `json:"total_usd"`
				Total     int64   `json:"total"`
				Currency  string  `json:"currency"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	eventName := envelope.Meta.EventName
	if eventName == "" {
		return nil, fmt.Errorf("%w: missing meta.event_name", ErrMalformedPayload)
	}

	ce := &CanonicalEvent{
		Provider:      ProviderLemonSqueezy,
		ProviderEvent: eventName,
		Platform:      PlatformWeb,
		OccurredAt:    time.Now().UTC(),
	}
	if ts, err := time.Parse(time.RFC3339, envelope.Data.Attributes.UpdatedAt); err == nil {
		ce.OccurredAt = ts.UTC()
	}

	switch eventName {
	case "subscription_created":
		ce.Action = ActionSubscriptionActivated
	case "subscription_updated", "subscription_resumed", "subscription_paused", "subscription_unpaused":
		ce.Action = ActionSubscriptionUpdated
	case "subscription_cancelled", "subscription_expired":
		ce.Action = ActionSubscriptionCancelled
	case "subscription_payment_success":
		ce.Action = ActionPaymentSucceeded
	case "subscription_payment_failed":
		ce.Action = ActionPaymentFailed
	default:
		ce.Action = ActionIgnored
		return ce, nil
	}

	rawUserID := envelope.Meta.CustomData["user_id"]
	if rawUserID == "" {
		return nil, fmt.Errorf("%w: meta.custom_data.user_id missing on lemonsqueezy event", ErrUnresolvableCorrelation)
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: custom_data.user_id %q is not a valid user ID", ErrUnresolvableCorrelation, rawUserID)
	}
	ce.UserID = userID

	if ce.Action == ActionPaymentSucceeded || ce.Action == ActionPaymentFailed {
		ce.Payment = &PaymentDetails{
			TransactionID: envelope.Data.ID,
			Amount:        envelope.Data.Attributes.Total,
			Currency:      envelope.Data.Attributes.Currency,
		}
		return ce, nil
	}

	if envelope.Data.Attributes.VariantID == 0 {
		return nil, fmt.Errorf("%w: no variant_id on lemonsqueezy event", ErrUnresolvableCorrelation)
	}
	planID, err := i.plans.Resolve(ProviderLemonSqueezy, strconv.FormatInt(envelope.Data.Attributes.VariantID, 10))
	if err != nil {
		return nil, err
	}
	ce.PlanID = planID

	ce.Status = mapLemonSqueezyStatus(envelope.Data.Attributes.Status)
	if eventName == "subscription_expired" {
		ce.Status = StatusExpired
		ce.Action = ActionSubscriptionUpdated
	}
	if ce.Action == ActionSubscriptionCancelled {
		ce.Status = StatusCancelled
	}

	if end := lemonSqueezyPeriodEnd(envelope.Data.Attributes.RenewsAt, envelope.Data.Attributes.EndsAt); end != nil {
		ce.PeriodEnd = end
	}

	return ce, nil
}

func mapLemonSqueezyStatus(status string) Status {
	switch status {
	case "on_trial":
		return StatusTrial
	case "active":
		return StatusActive
	case "past_due", "unpaid", "paused":
		return StatusPaused
	case "cancelled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	default:
		return StatusActive
	}
}

func lemonSqueezyPeriodEnd(renewsAt, endsAt *string) *time.Time {
	for _, candidate := range []*string{renewsAt, endsAt} {
		if candidate == nil || *candidate == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, *candidate); err == nil {
			end := ts.UTC()
			return &end
		}
	}
	return nil
}
