package billing

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v83"

	fitbilling "github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/eventlog"
	"github.com/dmitrymomot/fitkit/pkg/webhook"
)

// maxWebhookBody caps inbound payload size. Provider events are small;
// anything larger is abuse.
const maxWebhookBody = 256 * 1024

// WebhookService exposes one ingress route per payment provider. Each
// handler verifies the delivery's signature before anything else, appends
// the verified payload to the event log, then processes it inline.
//
// Signature failures return 401 and are never logged as events. Providers
// without a configured secret answer 404, so a deployment enables exactly
// the providers it holds secrets for. Once a delivery is appended the
// response is always 200: processing failures are the drain pass's
// problem, and a non-2xx would only make the provider redeliver a payload
// we already hold.
type WebhookService struct {
	events    *eventlog.Log
	processor *webhook.Processor
	log       *slog.Logger

	stripeSecret   string
	paddleSecret   string
	paddleVerifier *paddle.WebhookVerifier
	rcAuthToken    string
	lsSecret       string
	ppToken        string
}

// NewWebhookService creates the webhook ingress service.
// Panics if events, processor or log wiring is nil.
func NewWebhookService(
	events *eventlog.Log,
	processor *webhook.Processor,
	stripeCfg fitbilling.StripeConfig,
	paddleCfg fitbilling.PaddleConfig,
	rcCfg fitbilling.RevenueCatConfig,
	lsCfg fitbilling.LemonSqueezyConfig,
	ppCfg fitbilling.PayPalConfig,
	log *slog.Logger,
) *WebhookService {
	if events == nil {
		panic("billing: event log is required")
	}
	if processor == nil {
		panic("billing: processor is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &WebhookService{
		events:         events,
		processor:      processor,
		log:            log,
		stripeSecret:   stripeCfg.WebhookSecret,
		paddleSecret:   paddleCfg.WebhookSecret,
		paddleVerifier: paddle.NewWebhookVerifier(paddleCfg.WebhookSecret),
		rcAuthToken:    rcCfg.WebhookAuthToken,
		lsSecret:       lsCfg.SigningSecret,
		ppToken:        ppCfg.WebhookID,
	}
}

// Handle returns the router for mounting under the webhooks path.
func (s *WebhookService) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/stripe", s.stripe)
	r.Post("/paddle", s.paddle)
	r.Post("/revenuecat", s.revenueCat)
	r.Post("/lemonsqueezy", s.lemonSqueezy)
	r.Post("/paypal", s.payPal)

	return r
}

func (s *WebhookService) stripe(w http.ResponseWriter, r *http.Request) {
	if s.notConfigured(w, s.stripeSecret) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := stripe.ConstructEvent(body, sig, s.stripeSecret)
	if err != nil {
		s.unauthorized(w, r, fitbilling.ProviderStripe, err)
		return
	}

	s.accept(w, r, fitbilling.ProviderStripe, string(event.Type), body, map[string]string{
		"Stripe-Signature": sig,
	})
}

func (s *WebhookService) paddle(w http.ResponseWriter, r *http.Request) {
	if s.notConfigured(w, s.paddleSecret) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	sig := r.Header.Get("Paddle-Signature")
	verifyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, r.URL.Path, bytes.NewReader(body))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	verifyReq.Header.Set("Paddle-Signature", sig)

	valid, err := s.paddleVerifier.Verify(verifyReq)
	if err != nil || !valid {
		s.unauthorized(w, r, fitbilling.ProviderPaddle, err)
		return
	}

	s.accept(w, r, fitbilling.ProviderPaddle, probeEventType(body, "event_type"), body, map[string]string{
		"Paddle-Signature": sig,
	})
}

func (s *WebhookService) revenueCat(w http.ResponseWriter, r *http.Request) {
	if s.notConfigured(w, s.rcAuthToken) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if err := webhook.VerifyAuthToken(s.rcAuthToken, r.Header.Get("Authorization")); err != nil {
		s.unauthorized(w, r, fitbilling.ProviderRevenueCat, err)
		return
	}

	var envelope struct {
		Event struct {
			Type string `json:"type"`
		} `json:"event"`
	}
	_ = json.Unmarshal(body, &envelope)

	s.accept(w, r, fitbilling.ProviderRevenueCat, envelope.Event.Type, body, nil)
}

func (s *WebhookService) lemonSqueezy(w http.ResponseWriter, r *http.Request) {
	if s.notConfigured(w, s.lsSecret) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	sig := r.Header.Get("X-Signature")
	if err := webhook.VerifyHMACSignature(s.lsSecret, body, sig); err != nil {
		s.unauthorized(w, r, fitbilling.ProviderLemonSqueezy, err)
		return
	}

	var envelope struct {
		Meta struct {
			EventName string `json:"event_name"`
		} `json:"meta"`
	}
	_ = json.Unmarshal(body, &envelope)

	s.accept(w, r, fitbilling.ProviderLemonSqueezy, envelope.Meta.EventName, body, map[string]string{
		"X-Signature": sig,
	})
}

func (s *WebhookService) payPal(w http.ResponseWriter, r *http.Request) {
	if s.notConfigured(w, s.ppToken) {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	// PayPal deliveries carry the webhook ID they were sent for; comparing
	// it against the configured ID gates out payloads aimed elsewhere.
	if err := webhook.VerifyAuthToken(s.ppToken, r.Header.Get("Paypal-Webhook-Id")); err != nil {
		s.unauthorized(w, r, fitbilling.ProviderPayPal, err)
		return
	}

	s.accept(w, r, fitbilling.ProviderPayPal, probeEventType(body, "event_type"), body, nil)
}

// accept is the shared post-verification path: log the delivery, process it
// inline, acknowledge regardless of the processing outcome.
func (s *WebhookService) accept(w http.ResponseWriter, r *http.Request, provider fitbilling.Provider, eventType string, body []byte, headers map[string]string) {
	ctx := r.Context()

	event, err := s.events.Append(ctx, provider, eventType, body, headers, nil)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to log webhook delivery",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.processor.Process(ctx, event.ID); err != nil {
		s.log.WarnContext(ctx, "inline webhook processing failed, left for drain",
			slog.String("event_id", event.ID.String()),
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

// notConfigured rejects deliveries for providers whose secret was never
// set. An empty secret must not fall through to signature verification:
// an empty HMAC key would verify attacker-signed payloads.
func (s *WebhookService) notConfigured(w http.ResponseWriter, secret string) bool {
	if secret != "" {
		return false
	}
	http.Error(w, "provider not configured", http.StatusNotFound)
	return true
}

func (s *WebhookService) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (s *WebhookService) unauthorized(w http.ResponseWriter, r *http.Request, provider fitbilling.Provider, cause error) {
	attrs := []any{slog.String("provider", string(provider))}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	s.log.WarnContext(r.Context(), "webhook signature rejected", attrs...)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// probeEventType pulls a single top-level string field out of the payload
// without committing to the provider's full envelope shape.
func probeEventType(body []byte, field string) string {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	var value string
	_ = json.Unmarshal(probe[field], &value)
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
