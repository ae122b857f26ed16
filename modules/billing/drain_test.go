package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingmodule "github.com/dmitrymomot/fitkit/modules/billing"
	"github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/entitlement"
	"github.com/dmitrymomot/fitkit/pkg/eventlog"
	"github.com/dmitrymomot/fitkit/pkg/ledger"
	"github.com/dmitrymomot/fitkit/pkg/webhook"
)

func newAdminFixture(t *testing.T) (*billingmodule.AdminService, *eventlog.Log) {
	t.Helper()

	plans, err := billing.NewPlanMap(context.Background(), billing.NewInMemPlanSource(map[billing.Provider]map[string]string{
		billing.ProviderRevenueCat: {"rc_premium_monthly": "premium_monthly"},
	}))
	require.NoError(t, err)

	events := eventlog.New(eventlog.NewMemoryStore(), nil)
	processor := webhook.NewProcessor(events, ledger.New(ledger.NewMemoryStore(), nil),
		ledger.NewMemoryPaymentStore(), entitlement.NewMemoryUserFlagStore(),
		[]billing.Interpreter{billing.NewRevenueCatInterpreter(plans)}, nil)

	return billingmodule.NewAdminService(processor, webhook.DefaultDrainLimit, nil), events
}

func TestAdmin_DrainTrigger(t *testing.T) {
	t.Parallel()

	svc, events := newAdminFixture(t)

	// TRANSFER normalizes to an ignored no-op, so the drain settles it.
	_, err := events.Append(context.Background(), billing.ProviderRevenueCat, "TRANSFER",
		[]byte(`{"event":{"type":"TRANSFER","store":"APP_STORE","event_timestamp_ms":1756700000000}}`), nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/drain", nil)
	rec := httptest.NewRecorder()
	svc.Handle().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed": 1}`, rec.Body.String())

	pending, err := events.ListUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAdmin_DrainTrigger_Empty(t *testing.T) {
	t.Parallel()

	svc, _ := newAdminFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/drain", nil)
	rec := httptest.NewRecorder()
	svc.Handle().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed": 0}`, rec.Body.String())
}

func TestRouter_MountsOptionalServices(t *testing.T) {
	t.Parallel()

	admin, _ := newAdminFixture(t)
	r := billingmodule.Router(billingmodule.RouterOptions{Admin: admin})

	req := httptest.NewRequest(http.MethodPost, "/admin/drain", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Unmounted surfaces are absent, not stubbed.
	req = httptest.NewRequest(http.MethodGet, "/api/entitlement", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrainRunner_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	plans, err := billing.NewPlanMap(context.Background(), billing.NewInMemPlanSource(map[billing.Provider]map[string]string{
		billing.ProviderRevenueCat: {"rc_premium_monthly": "premium_monthly"},
	}))
	require.NoError(t, err)

	events := eventlog.New(eventlog.NewMemoryStore(), nil)
	processor := webhook.NewProcessor(events, ledger.New(ledger.NewMemoryStore(), nil),
		ledger.NewMemoryPaymentStore(), entitlement.NewMemoryUserFlagStore(),
		[]billing.Interpreter{billing.NewRevenueCatInterpreter(plans)}, nil)

	runner := billingmodule.NewDrainRunner(processor, billingmodule.Config{
		DrainInterval: 10 * time.Millisecond,
		DrainLimit:    5,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = runner.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
