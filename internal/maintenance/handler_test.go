package maintenance_test

import (
	"context"
	"testing"

	"bandstand/internal/catalog"
	"bandstand/internal/jobqueue"
	"bandstand/internal/maintenance"
	"bandstand/internal/testsupport"
)

func TestExecuteRecoversAbandonedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.StaleSyncHours = 0
	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	org := testsupport.NewOrganization(t, store, "Ridge High School", "UC-ridge")

	// A discovery run that started but never finished.
	audit, err := store.CreateSyncJob(ctx, "discovery", &org.ID, nil)
	if err != nil {
		t.Fatalf("CreateSyncJob: %v", err)
	}
	if err := store.StartSyncJob(ctx, audit.ID); err != nil {
		t.Fatalf("StartSyncJob: %v", err)
	}
	if err := store.UpdateOrganizationSync(ctx, org.ID, catalog.SyncInFlight); err != nil {
		t.Fatalf("UpdateOrganizationSync: %v", err)
	}

	handler := maintenance.NewHandler(store, queue, cfg, nil)
	job := &jobqueue.Job{ID: 1, Type: "maintenance", Lane: jobqueue.LaneMaintenance}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	recovered, err := store.SyncJobByID(ctx, audit.ID)
	if err != nil {
		t.Fatalf("SyncJobByID: %v", err)
	}
	if recovered.Status != catalog.JobFailed {
		t.Errorf("abandoned run status = %q, want %q", recovered.Status, catalog.JobFailed)
	}
	if len(recovered.Errors) != 1 {
		t.Errorf("abandoned run errors = %v, want one entry", recovered.Errors)
	}

	reloaded, err := store.OrganizationByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("OrganizationByID: %v", err)
	}
	if reloaded.SyncStatus != catalog.SyncPending {
		t.Errorf("stuck source status = %q, want %q", reloaded.SyncStatus, catalog.SyncPending)
	}
}

func TestExecuteCleansQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.StaleJobHours = 0
	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	if _, err := queue.Enqueue(ctx, "discovery:done", jobqueue.LaneDiscovery, "discovery", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := queue.Claim(ctx, jobqueue.LaneDiscovery)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := queue.Complete(ctx, claimed.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := queue.Enqueue(ctx, "promotion:old", jobqueue.LaneEnrichment, "promotion", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	handler := maintenance.NewHandler(store, queue, cfg, nil)
	job := &jobqueue.Job{ID: 1, Type: "maintenance", Lane: jobqueue.LaneMaintenance}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	stats, err := queue.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobqueue.StatusCompleted] != 0 {
		t.Errorf("completed jobs after cleanup = %d, want 0", stats[jobqueue.StatusCompleted])
	}
	if stats[jobqueue.StatusPending] != 0 {
		t.Errorf("pending jobs after cleanup = %d, want 0", stats[jobqueue.StatusPending])
	}
	if stats[jobqueue.StatusFailed] != 1 {
		t.Errorf("expired jobs = %d, want 1 failed", stats[jobqueue.StatusFailed])
	}

	expired, err := queue.ByKey(ctx, "promotion:old")
	if err != nil {
		t.Fatalf("ByKey: %v", err)
	}
	if expired.LastError != "expired before execution" {
		t.Errorf("expired job error = %q", expired.LastError)
	}
}

func TestExecuteRunsDedupPass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)
	ctx := context.Background()

	if _, err := store.UpsertStagedVideo(ctx, testsupport.StagedFixture("vid-1", "Ridge Invitational 2023")); err != nil {
		t.Fatalf("UpsertStagedVideo: %v", err)
	}

	handler := maintenance.NewHandler(store, queue, cfg, nil)
	job := &jobqueue.Job{ID: 1, Type: "maintenance", Lane: jobqueue.LaneMaintenance}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// The unique row survives the duplicate sweep.
	if _, err := store.StagedByExternalID(ctx, "vid-1"); err != nil {
		t.Fatalf("StagedByExternalID after dedup: %v", err)
	}
}
