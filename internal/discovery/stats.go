package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/services"
	"bandstand/internal/stage"
	"bandstand/internal/ytapi"
)

// statsBatchLimit bounds one refresh run so a large catalog cannot starve
// the discovery lane for a whole day.
const statsBatchLimit = 500

// StatsHandler refreshes view and like counters on promoted videos whose
// numbers have gone stale.
type StatsHandler struct {
	store  *catalog.Store
	api    ytapi.API
	cfg    *config.Config
	worker *Worker
	logger *slog.Logger
}

// NewStatsHandler builds the statistics refresh handler.
func NewStatsHandler(store *catalog.Store, api ytapi.API, cfg *config.Config, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StatsHandler{
		store:  store,
		api:    api,
		cfg:    cfg,
		worker: NewWorker(store, api, cfg, logger),
		logger: logging.NewComponentLogger(logger, "stats-refresh"),
	}
}

// Prepare validates the provider configuration.
func (h *StatsHandler) Prepare(ctx context.Context, job *jobqueue.Job) error {
	if strings.TrimSpace(h.cfg.Provider.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, "stats-refresh", "prepare", "provider api key not configured", nil)
	}
	return nil
}

// Execute batch-fetches fresh counters for stale promoted rows. The quota
// check runs between batches, the same way discovery checks between sources.
func (h *StatsHandler) Execute(ctx context.Context, job *jobqueue.Job) error {
	staleAfter := time.Duration(h.cfg.Schedule.StatsRefreshHours) * time.Hour
	maxAge := time.Duration(h.cfg.Pipeline.StatsRefreshMaxAge) * 24 * time.Hour
	stale, err := h.store.PromotedForStatsRefresh(ctx, staleAfter, maxAge, statsBatchLimit)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	byExternalID := make(map[string]*catalog.PromotedVideo, len(stale))
	ids := make([]string, 0, len(stale))
	for _, video := range stale {
		byExternalID[video.ExternalVideoID] = video
		ids = append(ids, video.ExternalVideoID)
	}

	refreshed := 0
	for start := 0; start < len(ids); start += 50 {
		if h.api.Quota().UsageRatio() >= quotaHaltRatio {
			h.logger.Warn("quota budget nearly spent, halting stats refresh",
				logging.Int("refreshed", refreshed),
				logging.Int("remaining", len(ids)-start))
			return nil
		}
		if start > 0 {
			if err := h.worker.pause(ctx, h.cfg.Pipeline.BatchDelaySeconds); err != nil {
				return err
			}
		}
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}
		videos, err := callWithRetry(ctx, h.worker, func() ([]ytapi.Video, error) {
			return h.api.VideoDetails(ctx, ids[start:end])
		})
		if err != nil {
			return err
		}
		for _, video := range videos {
			promoted, ok := byExternalID[video.ExternalID]
			if !ok {
				continue
			}
			if err := h.store.UpdatePromotedStats(ctx, promoted.ID, video.ViewCount, video.LikeCount); err != nil {
				h.logger.Warn("skipping stats update",
					logging.String("video", video.ExternalID), logging.Error(err))
				continue
			}
			refreshed++
		}
	}

	h.logger.Info("stats refresh completed", logging.Int("refreshed", refreshed), logging.Int("stale", len(stale)))
	return nil
}

// HealthCheck reports readiness of the refresh stage.
func (h *StatsHandler) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.Provider.APIKey) == "" {
		return stage.Unhealthy("stats-refresh", "provider api key not configured")
	}
	if _, err := h.store.PromotedCount(ctx); err != nil {
		return stage.Unhealthy("stats-refresh", fmt.Sprintf("catalog unavailable: %v", err))
	}
	return stage.Healthy("stats-refresh")
}
