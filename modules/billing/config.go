package billing

import "time"

// Config holds module-level settings. Provider credentials live in their
// own config structs under pkg/billing.
type Config struct {
	// DrainInterval is the in-process retry cadence. Ignored when the
	// deployment drives draining through the admin route instead.
	DrainInterval time.Duration `env:"BILLING_DRAIN_INTERVAL" envDefault:"1m"`

	// DrainLimit caps how many events one drain pass attempts.
	DrainLimit int `env:"BILLING_DRAIN_LIMIT" envDefault:"10"`

	// PlanMapPath points at the YAML file mapping provider price IDs to
	// internal plan IDs. Empty means the mapping is provided in code.
	PlanMapPath string `env:"BILLING_PLAN_MAP_PATH"`
}
