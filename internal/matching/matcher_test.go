package matching_test

import (
	"context"
	"testing"

	"bandstand/internal/jobqueue"
	"bandstand/internal/matching"
	"bandstand/internal/testsupport"
)

func TestConfidenceRanksNamePresence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	org := testsupport.NewOrganization(t, store, "Ridge View Marching Band", "UC-ridge")

	candidate := matching.NewCandidate(org)
	full := matching.Confidence(candidate, "Ridge View Marching Band at Grand Nationals", "finals run")
	partial := matching.Confidence(candidate, "Ridge View warmup", "")
	unrelated := matching.Confidence(candidate, "Cooking pasta at home", "recipe")

	if full <= partial {
		t.Errorf("full name match (%v) should outscore partial (%v)", full, partial)
	}
	if partial <= unrelated {
		t.Errorf("partial match (%v) should outscore unrelated (%v)", partial, unrelated)
	}
	if unrelated != 0 {
		t.Errorf("unrelated text should score 0, got %v", unrelated)
	}
}

func TestExecuteAssignsAboveThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.MatchThreshold = 0.6
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ridge := testsupport.NewOrganization(t, store, "Ridge View Marching Band", "UC-ridge")
	testsupport.NewOrganization(t, store, "Lakewood Regiment", "UC-lakewood")
	creator := testsupport.NewCreator(t, store, "Band Cam Dan", "UC-dan")

	strong := testsupport.StagedFixture("vid-strong", "Ridge View Marching Band Finals 2024")
	strong.CreatorID = &creator.ID
	if _, err := store.UpsertStagedVideo(ctx, strong); err != nil {
		t.Fatalf("upsert strong: %v", err)
	}

	weak := testsupport.StagedFixture("vid-weak", "Random concert footage")
	weak.CreatorID = &creator.ID
	if _, err := store.UpsertStagedVideo(ctx, weak); err != nil {
		t.Fatalf("upsert weak: %v", err)
	}

	handler := matching.NewHandler(store, cfg, nil)
	if err := handler.Execute(ctx, &jobqueue.Job{Type: "matching", Lane: jobqueue.LaneEnrichment}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	resolved, err := store.StagedByExternalID(ctx, "vid-strong")
	if err != nil {
		t.Fatalf("StagedByExternalID failed: %v", err)
	}
	if resolved.OrganizationID == nil || *resolved.OrganizationID != ridge.ID {
		t.Errorf("expected assignment to Ridge View, got %+v", resolved.OrganizationID)
	}
	if resolved.MatchConfidence == nil || *resolved.MatchConfidence < 0.6 {
		t.Errorf("expected recorded confidence at or above threshold, got %+v", resolved.MatchConfidence)
	}

	unresolved, err := store.UnresolvedStaged(ctx, 10)
	if err != nil {
		t.Fatalf("UnresolvedStaged failed: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0].ExternalVideoID != "vid-weak" {
		t.Errorf("weak match must stay unresolved, got %+v", unresolved)
	}
}

func TestExecuteLeavesUnmatchedForNextRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.MatchThreshold = 0.99
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewOrganization(t, store, "Ridge View Marching Band", "UC-ridge")
	creator := testsupport.NewCreator(t, store, "Band Cam Dan", "UC-dan")

	video := testsupport.StagedFixture("vid-1", "Ridge View Marching")
	video.CreatorID = &creator.ID
	if _, err := store.UpsertStagedVideo(ctx, video); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	handler := matching.NewHandler(store, cfg, nil)
	if err := handler.Execute(ctx, &jobqueue.Job{Type: "matching"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	unresolved, err := store.UnresolvedStaged(ctx, 10)
	if err != nil {
		t.Fatalf("UnresolvedStaged failed: %v", err)
	}
	if len(unresolved) != 1 {
		t.Errorf("row below threshold must remain unresolved, got %d", len(unresolved))
	}

	if health := handler.HealthCheck(ctx); !health.Ready {
		t.Errorf("expected healthy stage, got %+v", health)
	}
}

