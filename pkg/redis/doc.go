// Package redis provides helpers for connecting to the Redis server behind
// the entitlement decision cache.
//
// The package wraps the go-redis client and adds:
//
//   - A `Connect` helper which retries the connection using the supplied
//     configuration.
//   - A health-check closure to integrate Redis into liveness and readiness
//     probes.
//
// Configuration is described by the `Config` struct whose fields are
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    log.Error("redis unavailable", logger.Error(err))
//	    os.Exit(1)
//	}
//	defer client.Close()
//
//	cache := entitlement.NewCache(client, log)
package redis
