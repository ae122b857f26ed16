package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the billing module.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	// Webhooks is the provider ingress surface (signature-gated).
	Webhooks Mountable

	// API is the client-facing surface (licenses, entitlement, checkout).
	API Mountable

	// Admin carries operational routes such as the drain trigger. Mount it
	// behind operator-only auth.
	Admin Mountable
}

// Router creates a new billing module router with configurable services.
//
// Example:
//
//	webhookSvc := billing.NewWebhookService(events, processor, stripeCfg, paddleCfg, rcCfg, lsCfg, ppCfg, logger)
//	apiSvc := billing.NewAPIService(licenses, resolver, checkoutProviders, logger)
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Webhooks: webhookSvc,
//	    API:      apiSvc,
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Webhooks != nil {
		r.Mount("/webhooks", opts.Webhooks.Handle())
	}
	if opts.API != nil {
		r.Mount("/api", opts.API.Handle())
	}
	if opts.Admin != nil {
		r.Mount("/admin", opts.Admin.Handle())
	}

	return r
}
