package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/services"
	"bandstand/internal/stage"
	"bandstand/internal/testsupport"
	"bandstand/internal/workflow"
)

type fakeHandler struct {
	name       string
	executions atomic.Int64
	execute    func(ctx context.Context, job *jobqueue.Job) error
}

func (h *fakeHandler) Prepare(ctx context.Context, job *jobqueue.Job) error { return nil }

func (h *fakeHandler) Execute(ctx context.Context, job *jobqueue.Job) error {
	h.executions.Add(1)
	if h.execute != nil {
		return h.execute(ctx, job)
	}
	return nil
}

func (h *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(h.name)
}

func newWorkflowConfig(t *testing.T) *config.Config {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.PollInterval = 0
	cfg.Queue.ErrorRetryInterval = 0
	cfg.Queue.RetryBackoff = 0
	return cfg
}

func waitForStatus(t *testing.T, queue *jobqueue.Store, key string, want jobqueue.Status) *jobqueue.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := queue.ByKey(context.Background(), key)
		if err != nil {
			t.Fatalf("ByKey(%q): %v", key, err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %q never reached status %q", key, want)
	return nil
}

func TestManagerCompletesClaimedJobs(t *testing.T) {
	cfg := newWorkflowConfig(t)
	queue := testsupport.MustOpenQueue(t, cfg)

	handler := &fakeHandler{name: "discovery"}
	manager := workflow.NewManager(cfg, queue, nil)
	manager.ConfigureStages(workflow.StageSet{Discovery: handler})

	if _, err := queue.Enqueue(context.Background(), "discovery:2026-01-05", jobqueue.LaneDiscovery, workflow.JobTypeDiscovery, nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	waitForStatus(t, queue, "discovery:2026-01-05", jobqueue.StatusCompleted)
	if got := handler.executions.Load(); got != 1 {
		t.Errorf("handler executions = %d, want 1", got)
	}
}

func TestManagerReschedulesRateLimitedJobs(t *testing.T) {
	cfg := newWorkflowConfig(t)
	queue := testsupport.MustOpenQueue(t, cfg)

	handler := &fakeHandler{name: "discovery"}
	handler.execute = func(ctx context.Context, job *jobqueue.Job) error {
		if handler.executions.Load() == 1 {
			return &services.RateLimitedError{RetryAfter: 20 * time.Millisecond}
		}
		return nil
	}
	manager := workflow.NewManager(cfg, queue, nil)
	manager.ConfigureStages(workflow.StageSet{Discovery: handler})

	if _, err := queue.Enqueue(context.Background(), "discovery:limited", jobqueue.LaneDiscovery, workflow.JobTypeDiscovery, nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	done := waitForStatus(t, queue, "discovery:limited", jobqueue.StatusCompleted)
	if got := handler.executions.Load(); got != 2 {
		t.Errorf("handler executions = %d, want 2", got)
	}
	// The provider-delay reschedule does not burn a retry attempt.
	if done.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", done.Attempts)
	}
}

func TestManagerExhaustsRetriesOnPersistentFailure(t *testing.T) {
	cfg := newWorkflowConfig(t)
	cfg.Queue.MaxAttempts = 2
	queue := testsupport.MustOpenQueue(t, cfg)

	handler := &fakeHandler{name: "maintenance"}
	handler.execute = func(ctx context.Context, job *jobqueue.Job) error {
		return errors.New("catalog unavailable")
	}
	manager := workflow.NewManager(cfg, queue, nil)
	manager.ConfigureStages(workflow.StageSet{Maintenance: handler})

	if _, err := queue.Enqueue(context.Background(), "maintenance:daily", jobqueue.LaneMaintenance, workflow.JobTypeMaintenance, nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	failed := waitForStatus(t, queue, "maintenance:daily", jobqueue.StatusFailed)
	if failed.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", failed.Attempts)
	}
	if failed.LastError != "catalog unavailable" {
		t.Errorf("last error = %q", failed.LastError)
	}
	if got := handler.executions.Load(); got != 2 {
		t.Errorf("handler executions = %d, want 2", got)
	}
}

func TestManagerFailsJobsWithoutHandler(t *testing.T) {
	cfg := newWorkflowConfig(t)
	cfg.Queue.MaxAttempts = 1
	queue := testsupport.MustOpenQueue(t, cfg)

	manager := workflow.NewManager(cfg, queue, nil)
	manager.ConfigureStages(workflow.StageSet{Discovery: &fakeHandler{name: "discovery"}})

	if _, err := queue.Enqueue(context.Background(), "mystery:1", jobqueue.LaneDiscovery, "mystery", nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	waitForStatus(t, queue, "mystery:1", jobqueue.StatusFailed)
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := newWorkflowConfig(t)
	queue := testsupport.MustOpenQueue(t, cfg)

	manager := workflow.NewManager(cfg, queue, nil)
	if err := manager.Start(context.Background()); err == nil {
		manager.Stop()
		t.Fatal("Start succeeded without configured stages")
	}
}

func TestStatusAggregatesStageHealth(t *testing.T) {
	cfg := newWorkflowConfig(t)
	queue := testsupport.MustOpenQueue(t, cfg)

	manager := workflow.NewManager(cfg, queue, nil)
	manager.ConfigureStages(workflow.StageSet{
		Discovery: &fakeHandler{name: "discovery"},
		Promotion: &fakeHandler{name: "promotion"},
	})

	summary := manager.Status(context.Background())
	if summary.Running {
		t.Error("manager reported running before Start")
	}
	if len(summary.StageHealth) != 2 {
		t.Fatalf("stage health entries = %d, want 2", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Errorf("stage %s not ready: %s", name, health.Detail)
		}
	}
}
