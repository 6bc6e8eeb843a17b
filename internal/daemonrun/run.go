// Package daemonrun wires configuration, stores, stage handlers, and the
// IPC server into a running daemon process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/daemon"
	"bandstand/internal/discovery"
	"bandstand/internal/ipc"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/maintenance"
	"bandstand/internal/matching"
	"bandstand/internal/notifications"
	"bandstand/internal/promotion"
	"bandstand/internal/scheduler"
	"bandstand/internal/workflow"
	"bandstand/internal/ytapi"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel   string
	SocketPath string
}

// Run starts the bandstand daemon runtime loop and blocks until the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "bandstand.log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logStartupSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "bandstandd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	queue, err := jobqueue.Open(cfg)
	if err != nil {
		logger.Error("open job queue", logging.Error(err))
		return err
	}
	defer queue.Close()

	categories, err := store.LoadCategories(signalCtx)
	if err != nil {
		logger.Error("load categories", logging.Error(err))
		return err
	}

	api, err := ytapi.New(cfg)
	if err != nil {
		return fmt.Errorf("init video API client: %w", err)
	}
	notifier := notifications.NewService(cfg)

	manager := workflow.NewManager(cfg, queue, logger)
	registerStages(manager, cfg, store, queue, api, notifier, categories, logger)

	sched := scheduler.New(cfg, queue, logger)
	d, err := daemon.New(cfg, store, queue, logger, manager, sched)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = filepath.Join(cfg.Paths.DataDir, "bandstandd.sock")
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and make sure another instance is not running"))
	}

	<-signalCtx.Done()
	logger.Info("bandstand daemon shutting down")
	return nil
}

func registerStages(
	mgr *workflow.Manager,
	cfg *config.Config,
	store *catalog.Store,
	queue *jobqueue.Store,
	api ytapi.API,
	notifier notifications.Service,
	categories *catalog.CategoryCache,
	logger *slog.Logger,
) {
	if mgr == nil || cfg == nil {
		return
	}

	discoverer := discovery.NewHandler(store, api, cfg, notifier, logger)
	mgr.ConfigureStages(workflow.StageSet{
		Discovery:    discoverer,
		FullResync:   discoverer,
		Matching:     matching.NewHandler(store, cfg, logger),
		Promotion:    promotion.NewHandler(store, cfg, notifier, categories, logger),
		StatsRefresh: discovery.NewStatsHandler(store, api, cfg, logger),
		Maintenance:  maintenance.NewHandler(store, queue, cfg, logger),
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.Bool("api_key_present", strings.TrimSpace(cfg.Provider.APIKey) != ""),
		logging.Int64("daily_quota_limit", cfg.Provider.DailyQuotaLimit),
		logging.Bool("webhook_configured", strings.TrimSpace(cfg.Notifications.WebhookURL) != ""),
		logging.String("catalog_db", cfg.DatabasePath()),
		logging.String("queue_db", cfg.QueueDatabasePath()),
	)
	if cfg.Lanes.Discovery > 1 {
		logger.Warn("quota accounting assumes a single discovery worker; concurrent workers can overshoot the daily budget",
			logging.Int("discovery_lane_workers", cfg.Lanes.Discovery))
	}
}
