package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/logging"
	"bandstand/internal/services"
	"bandstand/internal/ytapi"
)

// quotaHaltRatio is the budget fraction at which a run stops taking on new
// sources. Partial results still count as a completed run.
const quotaHaltRatio = 0.90

const quotaHaltMessage = "Quota limit reached"

// inactiveRecheckWindow is how long a deactivated source can sit untouched
// before the full resync revisits it. Never-synced inactive sources are
// always revisited.
const inactiveRecheckWindow = 30 * 24 * time.Hour

// Source is one channel to enumerate, regardless of owner table.
type Source struct {
	Kind      catalog.SourceKind
	ID        int64
	Name      string
	ChannelID string
}

// RunResult aggregates the counters a run reports into its audit row.
type RunResult struct {
	Found   int
	Added   int
	Updated int
	Errors  []string
}

// Worker ingests channel uploads into the staged table.
type Worker struct {
	store  *catalog.Store
	api    ytapi.API
	cfg    *config.Config
	logger *slog.Logger
}

// NewWorker builds a discovery worker.
func NewWorker(store *catalog.Store, api ytapi.API, cfg *config.Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		store:  store,
		api:    api,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "discovery"),
	}
}

// Run walks every active source, one at a time, until the list or the quota
// budget is exhausted. Per-source failures are recorded and skipped; only an
// unclassified error aborts the run.
func (w *Worker) Run(ctx context.Context) (RunResult, error) {
	return w.run(ctx, false)
}

// RunFull behaves like Run but also revisits inactive sources whose last
// sync is missing or older than the recheck window, so a source switched
// off by mistake still gets a periodic look.
func (w *Worker) RunFull(ctx context.Context) (RunResult, error) {
	return w.run(ctx, true)
}

func (w *Worker) run(ctx context.Context, full bool) (RunResult, error) {
	sources, err := w.collectSources(ctx, full)
	if err != nil {
		return RunResult{}, err
	}

	var result RunResult
	for i, source := range sources {
		if w.api.Quota().UsageRatio() >= quotaHaltRatio {
			w.logger.Warn("quota budget nearly spent, halting run",
				logging.Int("sources_remaining", len(sources)-i),
				logging.Int64("units_used", w.api.Quota().Used()),
				logging.Int64("units_limit", w.api.Quota().Limit()))
			result.Errors = append(result.Errors, quotaHaltMessage)
			break
		}
		if i > 0 {
			if err := w.pause(ctx, w.cfg.Pipeline.SourceDelaySeconds); err != nil {
				return result, err
			}
		}

		if err := w.syncSource(ctx, source, &result); err != nil {
			if errors.Is(err, services.ErrQuotaExceeded) {
				result.Errors = append(result.Errors, quotaHaltMessage)
				break
			}
			return result, err
		}
	}
	return result, nil
}

func (w *Worker) collectSources(ctx context.Context, full bool) ([]Source, error) {
	if full {
		return w.collectResyncSources(ctx)
	}
	orgs, err := w.store.ActiveOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	creators, err := w.store.ActiveCreators(ctx)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(orgs)+len(creators))
	for _, org := range orgs {
		sources = append(sources, Source{Kind: catalog.SourceOrganization, ID: org.ID, Name: org.Name, ChannelID: org.ExternalChannelID})
	}
	for _, creator := range creators {
		sources = append(sources, Source{Kind: catalog.SourceCreator, ID: creator.ID, Name: creator.Name, ChannelID: creator.ExternalChannelID})
	}
	return sources, nil
}

// collectResyncSources returns every active source plus the inactive ones
// that have aged past the recheck cutoff.
func (w *Worker) collectResyncSources(ctx context.Context) ([]Source, error) {
	orgs, err := w.store.AllOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	creators, err := w.store.AllCreators(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-inactiveRecheckWindow)
	sources := make([]Source, 0, len(orgs)+len(creators))
	for _, org := range orgs {
		if !org.IsActive && !recheckDue(org.LastSyncAt, cutoff) {
			continue
		}
		sources = append(sources, Source{Kind: catalog.SourceOrganization, ID: org.ID, Name: org.Name, ChannelID: org.ExternalChannelID})
	}
	for _, creator := range creators {
		if !creator.IsActive && !recheckDue(creator.LastSyncAt, cutoff) {
			continue
		}
		sources = append(sources, Source{Kind: catalog.SourceCreator, ID: creator.ID, Name: creator.Name, ChannelID: creator.ExternalChannelID})
	}
	return sources, nil
}

func recheckDue(lastSync *time.Time, cutoff time.Time) bool {
	return lastSync == nil || lastSync.Before(cutoff)
}

func (w *Worker) syncSource(ctx context.Context, source Source, result *RunResult) error {
	logger := w.logger.With(
		logging.String("source_kind", string(source.Kind)),
		logging.Int64("source_id", source.ID),
		logging.String("channel", source.ChannelID))

	if err := w.markSource(ctx, source, catalog.SyncInFlight); err != nil {
		return err
	}

	err := w.enumerateChannel(ctx, source, result, logger)
	switch {
	case err == nil:
		return w.markSource(ctx, source, catalog.SyncCompleted)
	case errors.Is(err, services.ErrNotFound):
		logger.Warn("channel has no uploads collection, skipping source", logging.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("%s %d: %v", source.Kind, source.ID, err))
		return w.markSource(ctx, source, catalog.SyncFailed)
	case errors.Is(err, services.ErrQuotaExceeded):
		_ = w.markSource(ctx, source, catalog.SyncFailed)
		return err
	default:
		_ = w.markSource(ctx, source, catalog.SyncFailed)
		return err
	}
}

func (w *Worker) enumerateChannel(ctx context.Context, source Source, result *RunResult, logger *slog.Logger) error {
	uploads, err := callWithRetry(ctx, w, func() (string, error) {
		return w.api.ResolveUploadsPlaylist(ctx, source.ChannelID)
	})
	if err != nil {
		return err
	}

	var ids []string
	pageToken := ""
	for {
		page, err := callWithRetry(ctx, w, func() (*ytapi.Page, error) {
			return w.api.PlaylistItemsPage(ctx, uploads, pageToken)
		})
		if err != nil {
			return err
		}
		ids = append(ids, page.IDs...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	result.Found += len(ids)

	for start := 0; start < len(ids); start += 50 {
		if start > 0 {
			if err := w.pause(ctx, w.cfg.Pipeline.BatchDelaySeconds); err != nil {
				return err
			}
		}
		end := start + 50
		if end > len(ids) {
			end = len(ids)
		}
		videos, err := callWithRetry(ctx, w, func() ([]ytapi.Video, error) {
			return w.api.VideoDetails(ctx, ids[start:end])
		})
		if err != nil {
			return err
		}
		for _, video := range videos {
			upsert, err := w.upsertVideo(ctx, source, video)
			if err != nil {
				logger.Warn("skipping video", logging.String("video", video.ExternalID), logging.Error(err))
				result.Errors = append(result.Errors, fmt.Sprintf("video %s: %v", video.ExternalID, err))
				continue
			}
			switch {
			case upsert.Added:
				result.Added++
			case upsert.Updated:
				result.Updated++
			}
		}
	}

	logger.Info("source enumerated",
		logging.Int("videos", len(ids)),
		logging.Int64("units_used", w.api.Quota().Used()))
	return nil
}

// upsertVideo stages one detail record. Failures here are per-item: the
// surrounding batch continues.
func (w *Worker) upsertVideo(ctx context.Context, source Source, video ytapi.Video) (catalog.UpsertResult, error) {
	if video.ExternalID == "" || video.Title == "" {
		return catalog.UpsertResult{}, services.Wrap(services.ErrValidation, "discovery", "upsert video", "record missing id or title", nil)
	}
	staged := catalog.StagedVideo{
		ExternalVideoID: video.ExternalID,
		Title:           video.Title,
		Description:     video.Description,
		ThumbnailURL:    video.ThumbnailURL,
		DurationSeconds: int(video.DurationSeconds),
		PublishedAt:     video.PublishedAt,
		ViewCount:       video.ViewCount,
		LikeCount:       video.LikeCount,
		ChannelID:       video.ChannelID,
		Tags:            video.Tags,
	}
	switch source.Kind {
	case catalog.SourceOrganization:
		staged.OrganizationID = &source.ID
	case catalog.SourceCreator:
		staged.CreatorID = &source.ID
	}
	return w.store.UpsertStagedVideo(ctx, staged)
}

func (w *Worker) markSource(ctx context.Context, source Source, status catalog.SyncStatus) error {
	switch source.Kind {
	case catalog.SourceCreator:
		return w.store.UpdateCreatorSync(ctx, source.ID, status)
	default:
		return w.store.UpdateOrganizationSync(ctx, source.ID, status)
	}
}

func (w *Worker) pause(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	return services.SleepWithContext(ctx, time.Duration(seconds)*time.Second)
}

// callWithRetry reissues a provider call after rate-limit responses,
// honoring the provider-supplied delay. Any other error passes through.
func callWithRetry[T any](ctx context.Context, w *Worker, call func() (T, error)) (T, error) {
	var zero T
	attempts := w.cfg.Pipeline.RateLimitRetryLimit
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; ; attempt++ {
		value, err := call()
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, services.ErrRateLimited) || attempt >= attempts {
			return zero, err
		}
		delay := services.RetryDelay(err, 5*time.Second)
		w.logger.Warn("rate limited, retrying request",
			logging.Duration("delay", delay),
			logging.Int("attempt", attempt+1))
		if sleepErr := services.SleepWithContext(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
}
