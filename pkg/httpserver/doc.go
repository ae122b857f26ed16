// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts and health-check handlers.
//
// Run blocks until the context is cancelled or an interrupt/TERM signal
// arrives, then drains in-flight requests within the configured shutdown
// deadline. Construction goes through New with functional options, or
// NewFromConfig for env-driven deployments. Start errors are wrapped with
// ErrStart and shutdown errors with ErrShutdown, so callers can tell them
// apart with errors.Is.
//
// HealthCheckHandler doubles as liveness probe (no dependency functions)
// and readiness probe (each supplied function must succeed); the billing
// service feeds it the pg and redis healthchecks.
//
//	srv := httpserver.NewFromConfig(cfg)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
package httpserver
