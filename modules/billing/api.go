package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	fitbilling "github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/entitlement"
	"github.com/dmitrymomot/fitkit/pkg/license"
)

// userIDHeader carries the authenticated user's ID, set by the upstream
// auth gateway. The billing module does not authenticate on its own.
const userIDHeader = "X-User-ID"

// APIService exposes the client-facing billing surface: license
// activation, entitlement checks and hosted checkout links.
type APIService struct {
	licenses *license.Registry
	resolver *entitlement.Resolver
	checkout map[fitbilling.Provider]fitbilling.CheckoutProvider
	log      *slog.Logger
}

// NewAPIService creates the client-facing billing API.
// Panics if licenses, resolver or log wiring is nil. Checkout providers
// are optional; a request naming an unwired provider gets a 404.
func NewAPIService(
	licenses *license.Registry,
	resolver *entitlement.Resolver,
	checkoutProviders []fitbilling.CheckoutProvider,
	log *slog.Logger,
) *APIService {
	if licenses == nil {
		panic("billing: license registry is required")
	}
	if resolver == nil {
		panic("billing: entitlement resolver is required")
	}
	if log == nil {
		log = slog.Default()
	}

	checkout := make(map[fitbilling.Provider]fitbilling.CheckoutProvider, len(checkoutProviders))
	for _, p := range checkoutProviders {
		checkout[p.Provider()] = p
	}

	return &APIService{
		licenses: licenses,
		resolver: resolver,
		checkout: checkout,
		log:      log,
	}
}

// Handle returns the router for mounting under the billing API path.
func (s *APIService) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/licenses/activate", s.activateLicense)
	r.Post("/licenses/validate", s.validateLicense)
	r.Get("/entitlement", s.entitlementStatus)
	r.Post("/checkout", s.createCheckout)

	return r
}

type activateLicenseRequest struct {
	Key string `json:"key"`
}

func (s *APIService) activateLicense(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req activateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "license key is required"})
		return
	}

	if err := s.licenses.Activate(r.Context(), req.Key, userID); err != nil {
		switch {
		case errors.Is(err, license.ErrInvalidLicense):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "license key not found"})
		case errors.Is(err, license.ErrAlreadyActivated):
			writeJSON(w, http.StatusConflict, map[string]any{"error": "license already activated"})
		case errors.Is(err, license.ErrLicenseExpired):
			writeJSON(w, http.StatusGone, map[string]any{"error": "license expired"})
		default:
			s.log.ErrorContext(r.Context(), "license activation failed",
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		return
	}

	s.resolver.Invalidate(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]any{"activated": true})
}

type validateLicenseRequest struct {
	Key string `json:"key"`
}

func (s *APIService) validateLicense(w http.ResponseWriter, r *http.Request) {
	var req validateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "license key is required"})
		return
	}

	valid, err := s.licenses.Validate(r.Context(), req.Key)
	if err != nil {
		s.log.ErrorContext(r.Context(), "license validation failed",
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

func (s *APIService) entitlementStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	premium := s.resolver.CanAccessPremium(ctx, userID)
	limits := s.resolver.UserLimits(ctx, userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"premium": premium,
		"mode":    s.resolver.Mode(ctx),
		"limits":  limits,
	})
}

type createCheckoutRequest struct {
	Provider   string `json:"provider"`
	PlanID     string `json:"plan_id"`
	Email      string `json:"email"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *APIService) createCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "plan_id is required"})
		return
	}

	provider, found := s.checkout[fitbilling.Provider(req.Provider)]
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown checkout provider"})
		return
	}

	link, err := provider.CreateCheckoutLink(r.Context(), fitbilling.CheckoutRequest{
		UserID:     userID,
		PlanID:     req.PlanID,
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		if errors.Is(err, fitbilling.ErrPlanNotMapped) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown plan"})
			return
		}
		s.log.ErrorContext(r.Context(), "checkout session creation failed",
			slog.String("user_id", userID.String()),
			slog.String("provider", req.Provider),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "checkout unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":        link.URL,
		"session_id": link.SessionID,
	})
}

func (s *APIService) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get(userIDHeader))
	if err != nil || id == uuid.Nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing user identity"})
		return uuid.Nil, false
	}
	return id, true
}
