package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds configuration for the Paddle integration.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleInterpreter normalizes Paddle webhook payloads.
type PaddleInterpreter struct {
	plans *PlanMap
}

// NewPaddleInterpreter creates a Paddle interpreter backed by the given plan
// mapping.
func NewPaddleInterpreter(plans *PlanMap) *PaddleInterpreter {
	if plans == nil {
		panic("billing: PlanMap is required")
	}
	return &PaddleInterpreter{plans: plans}
}

func (i *PaddleInterpreter) Provider() Provider { return ProviderPaddle }

func (i *PaddleInterpreter) Normalize(payload []byte) (*CanonicalEvent, error) {
	var event struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedPayload)
	}

	ce := &CanonicalEvent{
		Provider:      ProviderPaddle,
		ProviderEvent: event.EventType,
		Platform:      PlatformWeb,
		OccurredAt:    time.Now().UTC(),
	}
	if ts, err := time.Parse(time.RFC3339, event.OccurredAt); err == nil {
		ce.OccurredAt = ts.UTC()
	}

	switch event.EventType {
	case "subscription.created", "subscription.activated":
		ce.Action = ActionSubscriptionActivated
	case "subscription.updated", "subscription.resumed", "subscription.paused", "subscription.trialing":
		ce.Action = ActionSubscriptionUpdated
	case "subscription.canceled":
		ce.Action = ActionSubscriptionCancelled
	case "transaction.completed", "transaction.payment_succeeded":
		ce.Action = ActionPaymentSucceeded
	case "transaction.payment_failed":
		ce.Action = ActionPaymentFailed
	default:
		ce.Action = ActionIgnored
		return ce, nil
	}

	userID, err := paddleCustomUserID(event.Data)
	if err != nil {
		return nil, err
	}
	ce.UserID = userID

	switch ce.Action {
	case ActionPaymentSucceeded, ActionPaymentFailed:
		ce.Payment = paddlePaymentDetails(event.Data)
	default:
		priceID := paddlePriceID(event.Data)
		if priceID == "" {
			return nil, fmt.Errorf("%w: no price on paddle event %s", ErrUnresolvableCorrelation, event.EventID)
		}
		planID, err := i.plans.Resolve(ProviderPaddle, priceID)
		if err != nil {
			return nil, err
		}
		ce.PlanID = planID

		if status, ok := event.Data["status"].(string); ok {
			ce.Status = mapPaddleStatus(status)
		} else {
			ce.Status = StatusActive
		}
		if ce.Action == ActionSubscriptionCancelled {
			ce.Status = StatusCancelled
		}

		if period, ok := event.Data["current_billing_period"].(map[string]any); ok {
			if endsAt, ok := period["ends_at"].(string); ok {
				if ts, err := time.Parse(time.RFC3339, endsAt); err == nil {
					end := ts.UTC()
					ce.PeriodEnd = &end
				}
			}
		}
	}

	return ce, nil
}

func paddleCustomUserID(data map[string]any) (uuid.UUID, error) {
	customData, ok := data["custom_data"].(map[string]any)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: no custom_data on paddle event", ErrUnresolvableCorrelation)
	}
	raw, ok := customData["user_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("%w: custom_data.user_id missing on paddle event", ErrUnresolvableCorrelation)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: custom_data.user_id %q is not a valid user ID", ErrUnresolvableCorrelation, raw)
	}
	return parsed, nil
}

func paddlePriceID(data map[string]any) string {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	// Subscription events nest the price object; transaction events carry a
	// flat price_id.
	if price, ok := item["price"].(map[string]any); ok {
		if id, ok := price["id"].(string); ok {
			return id
		}
	}
	if id, ok := item["price_id"].(string); ok {
		return id
	}
	return ""
}

func paddlePaymentDetails(data map[string]any) *PaymentDetails {
	details := &PaymentDetails{}
	if id, ok := data["id"].(string); ok {
		details.TransactionID = id
	}
	if totals, ok := data["details"].(map[string]any); ok {
		if grand, ok := totals["totals"].(map[string]any); ok {
			if total, ok := grand["total"].(string); ok {
				// Paddle reports totals as strings in the smallest unit.
				var amount int64
				if _, err := fmt.Sscan(total, &amount); err == nil {
					details.Amount = amount
				}
			}
			if currency, ok := grand["currency_code"].(string); ok {
				details.Currency = currency
			}
		}
	}
	return details
}

func mapPaddleStatus(status string) Status {
	switch strings.ToLower(status) {
	case "trialing":
		return StatusTrial
	case "active":
		return StatusActive
	case "past_due", "paused":
		return StatusPaused
	case "canceled", "cancelled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	default:
		return StatusActive
	}
}

// PaddleCheckout creates hosted checkout transactions in Paddle and exposes
// the customer portal.
type PaddleCheckout struct {
	client *paddle.SDK
	plans  *PlanMap
}

// NewPaddleCheckout creates a checkout-link provider for Paddle.
func NewPaddleCheckout(cfg PaddleConfig, plans *PlanMap) (*PaddleCheckout, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if plans == nil {
		panic("billing: PlanMap is required")
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleCheckout{client: client, plans: plans}, nil
}

func (c *PaddleCheckout) Provider() Provider { return ProviderPaddle }

// CreateCheckoutLink creates a catalog transaction whose checkout URL hosts
// the payment flow.
func (c *PaddleCheckout) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	priceID, err := c.plans.PriceFor(ProviderPaddle, req.PlanID)
	if err != nil {
		return nil, err
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID.String(),
		},
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := c.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}
	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// GetCustomerPortalLink returns a portal session for an existing Paddle
// subscription.
func (c *PaddleCheckout) GetCustomerPortalLink(ctx context.Context, customerID, providerSubID string) (*PortalLink, error) {
	session, err := c.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID:      customerID,
		SubscriptionIDs: []string{providerSubID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle customer portal session: %w", err)
	}

	link := &PortalLink{ExpiresAt: time.Now().Add(24 * time.Hour)}
	if session.URLs.General.Overview != "" {
		link.URL = session.URLs.General.Overview
	}
	for _, subURL := range session.URLs.Subscriptions {
		if subURL.ID == providerSubID && subURL.CancelSubscription != "" {
			link.CancelURL = subURL.CancelSubscription
			break
		}
	}
	if link.URL == "" {
		return nil, ErrNoPortalURL
	}

	return link, nil
}
