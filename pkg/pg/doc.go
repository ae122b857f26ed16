// Package pg wraps pgx connection management for the billing stores.
//
// It provides a Config loaded from the environment, a Connect helper with
// startup retries, a Healthcheck closure for readiness endpoints, goose
// migration plumbing routed through the application logger, and error
// predicates (IsNotFoundError, IsDuplicateKeyError and friends) that keep
// SQLSTATE handling out of store code.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    log.Error("db unavailable", logger.Error(err))
//	    os.Exit(1)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    log.Error("migrations failed", logger.Error(err))
//	    os.Exit(1)
//	}
package pg
