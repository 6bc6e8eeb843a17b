package daemon_test

import (
	"context"
	"testing"

	"bandstand/internal/config"
	"bandstand/internal/daemon"
	"bandstand/internal/maintenance"
	"bandstand/internal/scheduler"
	"bandstand/internal/testsupport"
	"bandstand/internal/workflow"
)

func newTestDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	queue := testsupport.MustOpenQueue(t, cfg)

	manager := workflow.NewManager(cfg, queue, nil)
	manager.ConfigureStages(workflow.StageSet{
		Maintenance: maintenance.NewHandler(store, queue, cfg, nil),
	})
	sched := scheduler.New(cfg, queue, nil)

	d, err := daemon.New(cfg, store, queue, nil, manager, sched)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status := d.Status(context.Background())
	if !status.Running {
		t.Error("daemon not reported running after Start")
	}
	if !status.Workflow.Running {
		t.Error("workflow not reported running after Start")
	}
	if status.LockFilePath == "" || status.QueueDBPath == "" {
		t.Errorf("status paths incomplete: %+v", status)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Error("daemon still reported running after Stop")
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newTestDaemon(t, cfg)
	second := newTestDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon instance acquired the lock")
	}
}

func TestDaemonRegistersSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg)
	ctx := context.Background()

	org, err := d.AddOrganization(ctx, "Ridge High School", "UC-ridge")
	if err != nil {
		t.Fatalf("AddOrganization: %v", err)
	}
	if org.ID == 0 {
		t.Error("organization id not assigned")
	}
	if _, err := d.AddOrganization(ctx, "", "UC-x"); err == nil {
		t.Error("AddOrganization accepted empty name")
	}

	creator, err := d.AddCreator(ctx, "Field Cam", "UC-cam")
	if err != nil {
		t.Fatalf("AddCreator: %v", err)
	}
	if creator.ID == 0 {
		t.Error("creator id not assigned")
	}

	orgs, err := d.ListOrganizations(ctx)
	if err != nil {
		t.Fatalf("ListOrganizations: %v", err)
	}
	if len(orgs) != 1 {
		t.Errorf("organizations = %d, want 1", len(orgs))
	}
	creators, err := d.ListCreators(ctx)
	if err != nil {
		t.Fatalf("ListCreators: %v", err)
	}
	if len(creators) != 1 {
		t.Errorf("creators = %d, want 1", len(creators))
	}
}
