package discovery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/notifications"
	"bandstand/internal/services"
	"bandstand/internal/stage"
	"bandstand/internal/workflow"
	"bandstand/internal/ytapi"
)

// Handler runs discovery jobs from the queue and maintains their audit
// records.
type Handler struct {
	worker   *Worker
	store    *catalog.Store
	cfg      *config.Config
	notifier notifications.Service
	logger   *slog.Logger
}

// NewHandler builds the discovery stage handler.
func NewHandler(store *catalog.Store, api ytapi.API, cfg *config.Config, notifier notifications.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		worker:   NewWorker(store, api, cfg, logger),
		store:    store,
		cfg:      cfg,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "discovery"),
	}
}

// Prepare validates that the provider is usable before a run starts.
func (h *Handler) Prepare(ctx context.Context, job *jobqueue.Job) error {
	if strings.TrimSpace(h.cfg.Provider.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "discovery", "prepare", "provider api key not configured", nil)
	}
	return nil
}

// Execute walks the active sources and records the outcome in a sync job.
// Full-resync jobs also sweep inactive sources past their recheck cutoff.
// A run with per-source or per-item errors still completes; only an
// unclassified error marks the audit row failed and reaches the queue's
// retry policy.
func (h *Handler) Execute(ctx context.Context, job *jobqueue.Job) error {
	record, err := h.store.CreateSyncJob(ctx, job.Type, nil, nil)
	if err != nil {
		return err
	}
	if err := h.store.StartSyncJob(ctx, record.ID); err != nil {
		return err
	}

	started := time.Now()
	if err := h.notifier.NotifyRunStarted(ctx, job.Type); err != nil {
		h.logger.Warn("run-started notification failed", logging.Error(err))
	}

	run := h.worker.Run
	if job.Type == workflow.JobTypeFullResync {
		run = h.worker.RunFull
	}
	result, runErr := run(ctx)
	if runErr != nil {
		runErrors := append(result.Errors, runErr.Error())
		if finishErr := h.store.FinishSyncJob(ctx, record.ID, catalog.JobFailed, result.Found, result.Added, result.Updated, runErrors); finishErr != nil {
			h.logger.Error("failed to record run failure", logging.Error(finishErr))
		}
		if notifyErr := h.notifier.NotifyError(ctx, runErr, job.Type); notifyErr != nil {
			h.logger.Warn("error notification failed", logging.Error(notifyErr))
		}
		return runErr
	}

	if err := h.store.FinishSyncJob(ctx, record.ID, catalog.JobCompleted, result.Found, result.Added, result.Updated, result.Errors); err != nil {
		return err
	}
	h.logger.Info("run completed",
		logging.String("job_type", job.Type),
		logging.Int("found", result.Found),
		logging.Int("added", result.Added),
		logging.Int("updated", result.Updated),
		logging.Int("errors", len(result.Errors)),
		logging.Duration("elapsed", time.Since(started)))
	if err := h.notifier.NotifyRunCompleted(ctx, job.Type, result.Found, result.Added, result.Updated, len(result.Errors), time.Since(started)); err != nil {
		h.logger.Warn("run-completed notification failed", logging.Error(err))
	}
	return nil
}

// HealthCheck reports whether discovery can reach its dependencies.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.Provider.APIKey) == "" {
		return stage.Unhealthy("discovery", "provider api key not configured")
	}
	if _, err := h.store.ActiveOrganizations(ctx); err != nil {
		return stage.Unhealthy("discovery", err.Error())
	}
	return stage.Healthy("discovery")
}
