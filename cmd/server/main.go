package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	billingmodule "github.com/dmitrymomot/fitkit/modules/billing"
	"github.com/dmitrymomot/fitkit/pkg/billing"
	"github.com/dmitrymomot/fitkit/pkg/config"
	"github.com/dmitrymomot/fitkit/pkg/entitlement"
	"github.com/dmitrymomot/fitkit/pkg/eventlog"
	"github.com/dmitrymomot/fitkit/pkg/httpserver"
	"github.com/dmitrymomot/fitkit/pkg/ledger"
	"github.com/dmitrymomot/fitkit/pkg/license"
	"github.com/dmitrymomot/fitkit/pkg/logger"
	"github.com/dmitrymomot/fitkit/pkg/pg"
	redisconn "github.com/dmitrymomot/fitkit/pkg/redis"
	"github.com/dmitrymomot/fitkit/pkg/requestid"
	"github.com/dmitrymomot/fitkit/pkg/webhook"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_NAME" envDefault:"fitkit-billing"`
}

func main() {
	var (
		appCfg    appConfig
		httpCfg   httpserver.Config
		pgCfg     pg.Config
		redisCfg  redisconn.Config
		moduleCfg billingmodule.Config
		stripeCfg billing.StripeConfig
		paddleCfg billing.PaddleConfig
		rcCfg     billing.RevenueCatConfig
		lsCfg     billing.LemonSqueezyConfig
		ppCfg     billing.PayPalConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&moduleCfg)
	config.MustLoad(&stripeCfg)
	config.MustLoad(&paddleCfg)
	config.MustLoad(&rcCfg)
	config.MustLoad(&lsCfg)
	config.MustLoad(&ppCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Environment, appCfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "postgres connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.ErrorContext(ctx, "migrations failed", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	plans, err := billing.NewPlanMap(ctx, billing.NewYAMLPlanSource(moduleCfg.PlanMapPath))
	if err != nil {
		log.ErrorContext(ctx, "plan map load failed", logger.Error(err))
		os.Exit(1)
	}

	events := eventlog.New(eventlog.NewPostgresStore(pool), log)
	subs := ledger.New(ledger.NewPostgresStore(pool), log)
	payments := ledger.NewPostgresPaymentStore(pool)
	licenses := license.NewRegistry(license.NewPostgresStore(pool), log)
	flagStore := entitlement.NewPostgresUserFlagStore(pool)

	resolver := entitlement.NewResolver(
		entitlement.NewPostgresConfigStore(pool),
		subs,
		licenses,
		flagStore,
		log,
		entitlement.WithCache(entitlement.NewCache(redisClient, log)),
	)

	processor := webhook.NewProcessor(events, subs, payments, flagStore,
		[]billing.Interpreter{
			billing.NewStripeInterpreter(plans),
			billing.NewPaddleInterpreter(plans),
			billing.NewRevenueCatInterpreter(plans),
			billing.NewLemonSqueezyInterpreter(plans),
			billing.NewPayPalInterpreter(plans),
		},
		log,
		webhook.WithInvalidator(resolver),
	)

	var checkoutProviders []billing.CheckoutProvider
	if stripeCheckout, err := billing.NewStripeCheckout(stripeCfg, plans); err == nil {
		checkoutProviders = append(checkoutProviders, stripeCheckout)
	} else if !errors.Is(err, billing.ErrMissingAPIKey) {
		log.ErrorContext(ctx, "stripe checkout setup failed", logger.Error(err))
		os.Exit(1)
	}
	if paddleCheckout, err := billing.NewPaddleCheckout(paddleCfg, plans); err == nil {
		checkoutProviders = append(checkoutProviders, paddleCheckout)
	} else if !errors.Is(err, billing.ErrMissingAPIKey) {
		log.ErrorContext(ctx, "paddle checkout setup failed", logger.Error(err))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log,
		pg.Healthcheck(pool),
		redisconn.Healthcheck(redisClient),
	))
	r.Mount("/billing", billingmodule.Router(billingmodule.RouterOptions{
		Webhooks: billingmodule.NewWebhookService(events, processor, stripeCfg, paddleCfg, rcCfg, lsCfg, ppCfg, log),
		API:      billingmodule.NewAPIService(licenses, resolver, checkoutProviders, log),
		Admin:    billingmodule.NewAdminService(processor, moduleCfg.DrainLimit, log),
	}))

	go func() {
		runner := billingmodule.NewDrainRunner(processor, moduleCfg, log)
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorContext(ctx, "drain runner stopped", logger.Error(err))
		}
	}()

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "server stopped", logger.Error(err))
		os.Exit(1)
	}
}
