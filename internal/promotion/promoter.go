// Package promotion copies resolved staged videos into the production
// catalog and triggers the new-video notification fan-out.
package promotion

import (
	"context"
	"fmt"
	"log/slog"

	"bandstand/internal/catalog"
	"bandstand/internal/classify"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/notifications"
	"bandstand/internal/stage"
)

// hiddenScoreFloor hides promoted videos scoring below it from default
// catalog listings. The flag is set exactly once, at promotion time.
const hiddenScoreFloor = 30

// promoteBatchLimit bounds one promotion run.
const promoteBatchLimit = 1000

// Handler runs promotion jobs from the enrichment lane.
type Handler struct {
	store      *catalog.Store
	cfg        *config.Config
	notifier   notifications.Service
	categories *catalog.CategoryCache
	logger     *slog.Logger
}

// NewHandler builds the promotion stage handler. The category cache is
// loaded once at process start.
func NewHandler(store *catalog.Store, cfg *config.Config, notifier notifications.Service, categories *catalog.CategoryCache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:      store,
		cfg:        cfg,
		notifier:   notifier,
		categories: categories,
		logger:     logging.NewComponentLogger(logger, "promotion"),
	}
}

// Prepare verifies the category cache was loaded.
func (h *Handler) Prepare(ctx context.Context, job *jobqueue.Job) error {
	if h.categories == nil || h.categories.Len() == 0 {
		return fmt.Errorf("category cache is empty")
	}
	return nil
}

// Execute promotes every resolved staged video that has no production
// entry yet. Promotion is idempotent: an already-promoted external id is a
// no-op with no duplicate notification.
func (h *Handler) Execute(ctx context.Context, job *jobqueue.Job) error {
	pending, err := h.store.ResolvedUnpromoted(ctx, promoteBatchLimit)
	if err != nil {
		return err
	}

	promoted := 0
	for _, staged := range pending {
		created, err := h.promoteOne(ctx, staged)
		if err != nil {
			h.logger.Warn("skipping video",
				logging.String("video", staged.ExternalVideoID), logging.Error(err))
			continue
		}
		if created {
			promoted++
		}
	}

	h.logger.Info("promotion completed",
		logging.Int("considered", len(pending)),
		logging.Int("promoted", promoted))
	return nil
}

func (h *Handler) promoteOne(ctx context.Context, staged *catalog.StagedVideo) (bool, error) {
	if staged.OrganizationID == nil {
		return false, fmt.Errorf("staged video %d has no organization", staged.ID)
	}

	categorySlug := classify.DetectCategory(staged.Title, staged.Description)
	event := classify.ExtractEvent(staged.Title, staged.Description)
	score := classify.QualityScore(staged.Title, staged.Description, staged.ViewCount)
	tags := classify.GenerateTags(staged.Tags, staged.Title, categorySlug, event)

	video := catalog.PromotedVideo{
		ExternalVideoID: staged.ExternalVideoID,
		Title:           staged.Title,
		Description:     staged.Description,
		ThumbnailURL:    staged.ThumbnailURL,
		DurationSeconds: staged.DurationSeconds,
		PublishedAt:     staged.PublishedAt,
		ViewCount:       staged.ViewCount,
		LikeCount:       staged.LikeCount,
		OrganizationID:  *staged.OrganizationID,
		EventName:       event.Name,
		EventYear:       event.Year,
		Tags:            tags,
		QualityScore:    score,
		IsHidden:        score < hiddenScoreFloor,
	}
	if category, ok := h.categories.BySlug(categorySlug); ok {
		video.CategoryID = &category.ID
	}

	created, err := h.store.InsertPromotedVideo(ctx, video)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	stored, err := h.store.PromotedByExternalID(ctx, video.ExternalVideoID)
	if err != nil {
		return true, err
	}
	// Notification failure never fails the promotion itself.
	if err := h.notifier.NotifyNewVideo(ctx, stored.OrganizationID, stored.ID, stored.Title); err != nil {
		h.logger.Warn("new-video notification failed",
			logging.String("video", stored.ExternalVideoID), logging.Error(err))
	}
	return true, nil
}

// HealthCheck reports readiness of the promotion stage.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.categories == nil || h.categories.Len() == 0 {
		return stage.Unhealthy("promotion", "category cache is empty")
	}
	if _, err := h.store.PromotedCount(ctx); err != nil {
		return stage.Unhealthy("promotion", fmt.Sprintf("catalog unavailable: %v", err))
	}
	return stage.Healthy("promotion")
}
