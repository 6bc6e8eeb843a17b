// Package maintenance implements the periodic cleanup stage: duplicate
// removal, stale run recovery, and queue housekeeping.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/stage"
)

// Handler runs maintenance jobs from the maintenance lane.
type Handler struct {
	store  *catalog.Store
	queue  *jobqueue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandler builds the maintenance stage handler.
func NewHandler(store *catalog.Store, queue *jobqueue.Store, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:  store,
		queue:  queue,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "maintenance"),
	}
}

// Prepare is a no-op; maintenance has no external requirements.
func (h *Handler) Prepare(ctx context.Context, job *jobqueue.Job) error {
	return nil
}

// Execute runs one maintenance pass. Each step is independent: a failure is
// logged and the remaining steps still run. The pass fails only when every
// step failed to reach the database.
func (h *Handler) Execute(ctx context.Context, job *jobqueue.Job) error {
	var firstErr error
	record := func(step string, err error) {
		h.logger.Error("maintenance step failed", logging.String("step", step), logging.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", step, err)
		}
	}

	dryRun := h.cfg.Pipeline.MaintenanceDryRun
	for _, table := range catalog.DedupTables() {
		removed, err := h.store.DeleteDuplicates(ctx, table, dryRun)
		if err != nil {
			record("dedup "+table, err)
			continue
		}
		if removed > 0 {
			h.logger.Info("removed duplicate rows",
				logging.String("table", table),
				logging.Int64("rows", removed),
				logging.Bool("dry_run", dryRun))
		}
	}

	staleCutoff := time.Now().Add(-time.Duration(h.cfg.Pipeline.StaleSyncHours) * time.Hour)
	if failed, err := h.store.FailStaleSyncJobs(ctx, staleCutoff); err != nil {
		record("fail stale sync jobs", err)
	} else if failed > 0 {
		h.logger.Warn("failed abandoned sync runs", logging.Int64("runs", failed))
	}
	if reclaimed, err := h.store.ReclaimStuckSources(ctx, staleCutoff); err != nil {
		record("reclaim stuck sources", err)
	} else if reclaimed > 0 {
		h.logger.Warn("reset stuck sources", logging.Int64("sources", reclaimed))
	}

	if cleared, err := h.queue.ClearCompleted(ctx); err != nil {
		record("clear completed jobs", err)
	} else if cleared > 0 {
		h.logger.Info("cleared completed jobs", logging.Int64("jobs", cleared))
	}
	queueCutoff := time.Now().Add(-time.Duration(h.cfg.Queue.StaleJobHours) * time.Hour)
	if expired, err := h.queue.ExpireStalePending(ctx, queueCutoff); err != nil {
		record("expire stale pending jobs", err)
	} else if expired > 0 {
		h.logger.Warn("expired stale pending jobs", logging.Int64("jobs", expired))
	}

	return firstErr
}

// HealthCheck reports readiness of the maintenance stage.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := h.store.PromotedCount(ctx); err != nil {
		return stage.Unhealthy("maintenance", fmt.Sprintf("catalog unavailable: %v", err))
	}
	if _, err := h.queue.Stats(ctx); err != nil {
		return stage.Unhealthy("maintenance", fmt.Sprintf("queue unavailable: %v", err))
	}
	return stage.Healthy("maintenance")
}
