// Package matching assigns unresolved staged videos to organizations using
// name and keyword overlap between the video text and organization names.
package matching

import (
	"context"
	"fmt"
	"log/slog"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/stage"
	"bandstand/internal/textutil"
)

// matchBatchLimit bounds how many unresolved rows one run considers.
const matchBatchLimit = 1000

// Candidate pairs an organization with its precomputed name fingerprint.
type Candidate struct {
	ID          int64
	Name        string
	fingerprint *textutil.Fingerprint
}

// Confidence scores a video's text against one candidate. The score blends
// cosine similarity over the full text with the fraction of the
// organization's name present in it, so short names cannot win on a single
// shared token.
func Confidence(candidate Candidate, title, description string) float64 {
	text := textutil.NewFingerprint(title + " " + description)
	if text == nil || candidate.fingerprint == nil {
		return 0
	}
	overlap := textutil.TokenOverlap(candidate.fingerprint, text)
	cosine := textutil.CosineSimilarity(candidate.fingerprint, text)
	return 0.7*overlap + 0.3*cosine
}

// NewCandidate builds a match candidate from an organization.
func NewCandidate(org *catalog.Organization) Candidate {
	return Candidate{
		ID:          org.ID,
		Name:        org.Name,
		fingerprint: textutil.NewFingerprint(org.Name),
	}
}

// Handler runs matching jobs from the enrichment lane.
type Handler struct {
	store     *catalog.Store
	threshold float64
	logger    *slog.Logger
}

// NewHandler builds the matching stage handler.
func NewHandler(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:     store,
		threshold: cfg.Pipeline.MatchThreshold,
		logger:    logging.NewComponentLogger(logger, "matching"),
	}
}

// Prepare is a no-op; matching has no external dependencies.
func (h *Handler) Prepare(ctx context.Context, job *jobqueue.Job) error {
	return nil
}

// Execute scores every unresolved staged video against all organizations
// and assigns the best candidate when it clears the configured threshold.
// Unmatched rows are left for the next run.
func (h *Handler) Execute(ctx context.Context, job *jobqueue.Job) error {
	orgs, err := h.store.AllOrganizations(ctx)
	if err != nil {
		return err
	}
	candidates := make([]Candidate, 0, len(orgs))
	for _, org := range orgs {
		candidates = append(candidates, NewCandidate(org))
	}

	unresolved, err := h.store.UnresolvedStaged(ctx, matchBatchLimit)
	if err != nil {
		return err
	}

	matched := 0
	for _, video := range unresolved {
		best, confidence := bestCandidate(candidates, video.Title, video.Description)
		if best == nil || confidence < h.threshold {
			continue
		}
		if err := h.store.AssignOrganization(ctx, video.ID, best.ID, confidence); err != nil {
			h.logger.Warn("skipping assignment",
				logging.String("video", video.ExternalVideoID), logging.Error(err))
			continue
		}
		matched++
		h.logger.Info("video matched",
			logging.String("video", video.ExternalVideoID),
			logging.String("organization", best.Name),
			logging.Float64("confidence", confidence))
	}

	h.logger.Info("matching completed",
		logging.Int("considered", len(unresolved)),
		logging.Int("matched", matched))
	return nil
}

// HealthCheck reports readiness of the matching stage.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := h.store.AllOrganizations(ctx); err != nil {
		return stage.Unhealthy("matching", fmt.Sprintf("catalog unavailable: %v", err))
	}
	return stage.Healthy("matching")
}

func bestCandidate(candidates []Candidate, title, description string) (*Candidate, float64) {
	var best *Candidate
	bestScore := 0.0
	for i := range candidates {
		score := Confidence(candidates[i], title, description)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, bestScore
}
