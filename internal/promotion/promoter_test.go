package promotion_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/jobqueue"
	"bandstand/internal/promotion"
	"bandstand/internal/testsupport"
)

type recordingNotifier struct {
	mu        sync.Mutex
	newVideos []string
	failNew   bool
}

func (n *recordingNotifier) NotifyNewVideo(ctx context.Context, organizationID, videoID int64, title string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newVideos = append(n.newVideos, title)
	if n.failNew {
		return errors.New("webhook unreachable")
	}
	return nil
}

func (n *recordingNotifier) NotifyRunStarted(ctx context.Context, jobType string) error { return nil }

func (n *recordingNotifier) NotifyRunCompleted(ctx context.Context, jobType string, found, added, updated, errorCount int, duration time.Duration) error {
	return nil
}

func (n *recordingNotifier) NotifyError(ctx context.Context, err error, context string) error {
	return nil
}

func (n *recordingNotifier) TestNotification(ctx context.Context) error { return nil }

func (n *recordingNotifier) newVideoCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.newVideos)
}

func seedResolved(t *testing.T, store *catalog.Store, orgID int64, externalID, title string, tags []string) {
	t.Helper()

	video := testsupport.StagedFixture(externalID, title)
	video.OrganizationID = &orgID
	video.Tags = tags
	if _, err := store.UpsertStagedVideo(context.Background(), video); err != nil {
		t.Fatalf("UpsertStagedVideo: %v", err)
	}
}

func newPromotionHandler(t *testing.T, notifier *recordingNotifier) (*promotion.Handler, *catalog.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	categories, err := store.LoadCategories(context.Background())
	if err != nil {
		t.Fatalf("LoadCategories: %v", err)
	}
	return promotion.NewHandler(store, cfg, notifier, categories, nil), store
}

func TestExecutePromotesResolvedVideos(t *testing.T) {
	notifier := &recordingNotifier{}
	handler, store := newPromotionHandler(t, notifier)
	ctx := context.Background()

	org := testsupport.NewOrganization(t, store, "Ridge High School", "UC-ridge")
	seedResolved(t, store, org.ID, "vid-show", "Ridge Invitational 2023 Field Show Finals", []string{"marching arts"})
	seedResolved(t, store, org.ID, "vid-junk", "Reaction to unboxing gameplay stream", nil)

	job := &jobqueue.Job{ID: 1, Type: "promotion", Lane: jobqueue.LaneEnrichment}
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	show, err := store.PromotedByExternalID(ctx, "vid-show")
	if err != nil {
		t.Fatalf("PromotedByExternalID(vid-show): %v", err)
	}
	if show.IsHidden {
		t.Errorf("high-quality video was hidden (score %d)", show.QualityScore)
	}
	if show.EventName != "Ridge Invitational" || show.EventYear != 2023 {
		t.Errorf("event = %q %d, want %q 2023", show.EventName, show.EventYear, "Ridge Invitational")
	}
	if show.CategoryID == nil {
		t.Error("field-show video has no category assigned")
	}
	wantTags := map[string]bool{"marching arts": false, "field-show": false, "2023": false}
	for _, tag := range show.Tags {
		if _, ok := wantTags[tag]; ok {
			wantTags[tag] = true
		}
	}
	for tag, found := range wantTags {
		if !found {
			t.Errorf("promoted tags %v missing %q", show.Tags, tag)
		}
	}

	junk, err := store.PromotedByExternalID(ctx, "vid-junk")
	if err != nil {
		t.Fatalf("PromotedByExternalID(vid-junk): %v", err)
	}
	if !junk.IsHidden {
		t.Errorf("low-quality video was not hidden (score %d)", junk.QualityScore)
	}
	if junk.CategoryID != nil {
		t.Errorf("uncategorized video got category %d", *junk.CategoryID)
	}

	if got := notifier.newVideoCount(); got != 2 {
		t.Errorf("new-video notifications = %d, want 2", got)
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	notifier := &recordingNotifier{}
	handler, store := newPromotionHandler(t, notifier)
	ctx := context.Background()

	org := testsupport.NewOrganization(t, store, "Ridge High School", "UC-ridge")
	seedResolved(t, store, org.ID, "vid-1", "Ridge Invitational 2023 Field Show Finals", nil)

	job := &jobqueue.Job{ID: 1, Type: "promotion", Lane: jobqueue.LaneEnrichment}
	for i := 0; i < 2; i++ {
		if err := handler.Execute(ctx, job); err != nil {
			t.Fatalf("Execute run %d failed: %v", i+1, err)
		}
	}

	count, err := store.PromotedCount(ctx)
	if err != nil {
		t.Fatalf("PromotedCount: %v", err)
	}
	if count != 1 {
		t.Errorf("promoted rows = %d, want 1", count)
	}
	if got := notifier.newVideoCount(); got != 1 {
		t.Errorf("new-video notifications = %d, want 1", got)
	}
}

func TestExecuteToleratesNotificationFailure(t *testing.T) {
	notifier := &recordingNotifier{failNew: true}
	handler, store := newPromotionHandler(t, notifier)
	ctx := context.Background()

	org := testsupport.NewOrganization(t, store, "Ridge High School", "UC-ridge")
	seedResolved(t, store, org.ID, "vid-1", "Ridge Invitational 2023 Field Show Finals", nil)

	job := &jobqueue.Job{ID: 1, Type: "promotion", Lane: jobqueue.LaneEnrichment}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if _, err := store.PromotedByExternalID(ctx, "vid-1"); err != nil {
		t.Fatalf("video was not promoted despite notification failure: %v", err)
	}
}

func TestPrepareRequiresCategoryCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := promotion.NewHandler(store, cfg, &recordingNotifier{}, nil, nil)

	job := &jobqueue.Job{ID: 1, Type: "promotion", Lane: jobqueue.LaneEnrichment}
	if err := handler.Prepare(context.Background(), job); err == nil {
		t.Fatal("Prepare succeeded with no category cache")
	}
}
