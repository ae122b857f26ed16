package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RevenueCatConfig holds configuration for the RevenueCat integration.
// RevenueCat authenticates webhooks with a static Authorization header
// configured in their dashboard.
type RevenueCatConfig struct {
	WebhookAuthToken string `env:"REVENUECAT_WEBHOOK_AUTH_TOKEN"`
}

// revenueCatEvent mirrors the envelope RevenueCat delivers. Mobile purchases
// (App Store, Play Store) arrive exclusively through this channel.
type revenueCatEvent struct {
	APIVersion string `json:"api_version"`
	Event      struct {
		Type                  string   `json:"type"`
		ID                    string   `json:"id"`
		AppUserID             string   `json:"app_user_id"`
		OriginalAppUserID     string   `json:"original_app_user_id"`
		ProductID             string   `json:"product_id"`
		EntitlementIDs        []string `json:"entitlement_ids"`
		PeriodType            string   `json:"period_type"`
		Store                 string   `json:"store"`
		EventTimestampMs      int64    `json:"event_timestamp_ms"`
		PurchasedAtMs         int64    `json:"purchased_at_ms"`
		ExpirationAtMs        int64    `json:"expiration_at_ms"`
		TransactionID         string   `json:"transaction_id"`
		OriginalTransactionID string   `json:"original_transaction_id"`
		Price                 float64  `json:"price"`
		Currency              string   `json:"currency"`
	} `json:"event"`
}

// RevenueCatInterpreter normalizes RevenueCat webhook payloads.
type RevenueCatInterpreter struct {
	plans *PlanMap
}

// NewRevenueCatInterpreter creates a RevenueCat interpreter backed by the
// given plan mapping.
func NewRevenueCatInterpreter(plans *PlanMap) *RevenueCatInterpreter {
	if plans == nil {
		panic("billing: PlanMap is required")
	}
	return &RevenueCatInterpreter{plans: plans}
}

func (i *RevenueCatInterpreter) Provider() Provider { return ProviderRevenueCat }

func (i *RevenueCatInterpreter) Normalize(payload []byte) (*CanonicalEvent, error) {
	var envelope revenueCatEvent
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	event := envelope.Event
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedPayload)
	}

	ce := &CanonicalEvent{
		Provider:      ProviderRevenueCat,
		ProviderEvent: event.Type,
		Platform:      mapRevenueCatStore(event.Store),
		OccurredAt:    revenueCatTime(event.EventTimestampMs, event.PurchasedAtMs),
	}

	switch event.Type {
	case "INITIAL_PURCHASE", "NON_RENEWING_PURCHASE":
		ce.Action = ActionSubscriptionActivated
		ce.Status = StatusActive
		if event.PeriodType == "TRIAL" {
			ce.Status = StatusTrial
		}
	case "RENEWAL", "PRODUCT_CHANGE", "UNCANCELLATION":
		ce.Action = ActionSubscriptionUpdated
		ce.Status = StatusActive
	case "CANCELLATION":
		ce.Action = ActionSubscriptionCancelled
		ce.Status = StatusCancelled
	case "EXPIRATION":
		ce.Action = ActionSubscriptionUpdated
		ce.Status = StatusExpired
	case "BILLING_ISSUE":
		ce.Action = ActionPaymentFailed
	default:
		// TRANSFER, SUBSCRIBER_ALIAS, TEST and future types are harmless.
		ce.Action = ActionIgnored
		return ce, nil
	}

	userID, err := uuid.Parse(event.AppUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: app_user_id %q is not a valid user ID", ErrUnresolvableCorrelation, event.AppUserID)
	}
	ce.UserID = userID

	ce.Correlation.RevenueCatUserID = event.OriginalAppUserID
	if len(event.EntitlementIDs) > 0 {
		ce.Correlation.RevenueCatEntitlement = event.EntitlementIDs[0]
	}

	if ce.Action == ActionPaymentFailed {
		ce.Payment = &PaymentDetails{
			TransactionID: event.TransactionID,
			Amount:        int64(event.Price * 100),
			Currency:      event.Currency,
		}
		return ce, nil
	}

	if event.ProductID == "" {
		return nil, fmt.Errorf("%w: no product_id on revenuecat event %s", ErrUnresolvableCorrelation, event.ID)
	}
	planID, err := i.plans.Resolve(ProviderRevenueCat, event.ProductID)
	if err != nil {
		return nil, err
	}
	ce.PlanID = planID

	if event.ExpirationAtMs > 0 {
		end := time.UnixMilli(event.ExpirationAtMs).UTC()
		ce.PeriodEnd = &end
	}

	return ce, nil
}

func mapRevenueCatStore(store string) Platform {
	switch strings.ToUpper(store) {
	case "APP_STORE", "MAC_APP_STORE":
		return PlatformIOS
	case "PLAY_STORE", "AMAZON":
		return PlatformAndroid
	default:
		return PlatformWeb
	}
}

func revenueCatTime(eventMs, purchasedMs int64) time.Time {
	switch {
	case eventMs > 0:
		return time.UnixMilli(eventMs).UTC()
	case purchasedMs > 0:
		return time.UnixMilli(purchasedMs).UTC()
	default:
		return time.Now().UTC()
	}
}
