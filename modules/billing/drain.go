package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/fitkit/pkg/webhook"
)

// AdminService exposes operational routes. The drain trigger lets an
// external scheduler (cron, Cloud Scheduler, a systemd timer) own the
// retry cadence instead of the in-process ticker.
type AdminService struct {
	processor *webhook.Processor
	limit     int
	log       *slog.Logger
}

// NewAdminService creates the operational route surface.
// Panics if processor is nil.
func NewAdminService(processor *webhook.Processor, drainLimit int, log *slog.Logger) *AdminService {
	if processor == nil {
		panic("billing: processor is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AdminService{processor: processor, limit: drainLimit, log: log}
}

// Handle returns the router for mounting under the admin path.
func (s *AdminService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/drain", s.drain)
	return r
}

func (s *AdminService) drain(w http.ResponseWriter, r *http.Request) {
	processed, err := s.processor.Drain(r.Context(), s.limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "drain trigger failed",
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "drain failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

// DrainRunner periodically reprocesses failed webhook events in-process.
// Deployments that prefer an external scheduler skip the runner and hit
// the admin drain route instead; running both is harmless since
// processing is idempotent.
type DrainRunner struct {
	processor *webhook.Processor
	interval  time.Duration
	limit     int
	log       *slog.Logger
}

// NewDrainRunner creates a drain loop with the given cadence.
// Panics if processor is nil.
func NewDrainRunner(processor *webhook.Processor, cfg Config, log *slog.Logger) *DrainRunner {
	if processor == nil {
		panic("billing: processor is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &DrainRunner{
		processor: processor,
		interval:  cfg.DrainInterval,
		limit:     cfg.DrainLimit,
		log:       log,
	}
}

// Run blocks until ctx is cancelled, draining on each tick.
func (d *DrainRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.InfoContext(ctx, "webhook drain runner started",
		slog.Duration("interval", d.interval),
		slog.Int("limit", d.limit))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.processor.Drain(ctx, d.limit); err != nil {
				d.log.ErrorContext(ctx, "drain pass failed",
					slog.String("error", err.Error()))
			}
		}
	}
}
