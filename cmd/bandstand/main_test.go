package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bandstand/internal/config"
	"bandstand/internal/daemon"
	"bandstand/internal/ipc"
	"bandstand/internal/jobqueue"
	"bandstand/internal/maintenance"
	"bandstand/internal/scheduler"
	"bandstand/internal/testsupport"
	"bandstand/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

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

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(t.TempDir(), "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon")
	requireContains(t, out, "not running")
	requireContains(t, out, "Queue is empty")
}

func TestCLISourceAndRunCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"sources", "add", "organization", "Ridge High School", "UC-ridge"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sources add: %v", err)
	}
	requireContains(t, out, "Registered organization")

	out, _, err = runCLI(t, []string{"sources", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sources list: %v", err)
	}
	requireContains(t, out, "Ridge High School")

	out, _, err = runCLI(t, []string{"run", "maintenance"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run maintenance: %v", err)
	}
	requireContains(t, out, "Enqueued maintenance run")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "maintenance")
	requireContains(t, out, string(jobqueue.StatusPending))
}

func TestCLIQueueClearCompleted(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"queue", "clear-completed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear-completed: %v", err)
	}
	requireContains(t, out, "Removed 0 completed job(s)")
}

func TestCLIRejectsUnknownRunTarget(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"run", "mystery"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown job type")
	}
}
