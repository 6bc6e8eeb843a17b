package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bandstand/internal/catalog"
	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/notifications"
	"bandstand/internal/scheduler"
	"bandstand/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	catalog   *catalog.Store
	queue     *jobqueue.Store
	workflow  *workflow.Manager
	scheduler *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	Workflow      workflow.StatusSummary
	CatalogDBPath string
	QueueDBPath   string
	LockFilePath  string
	PID           int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, catalogStore *catalog.Store, queueStore *jobqueue.Store, logger *slog.Logger, wf *workflow.Manager, sched *scheduler.Scheduler) (*Daemon, error) {
	if cfg == nil || catalogStore == nil || queueStore == nil || wf == nil || sched == nil {
		return nil, errors.New("daemon requires config, stores, workflow manager, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "bandstandd.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		catalog:   catalogStore,
		queue:     queueStore,
		workflow:  wf,
		scheduler: sched,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager and the
// scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bandstand daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.releaseStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.workflow.Stop()
		d.releaseStart()
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("bandstand daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.scheduler.Stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("bandstand daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.queue != nil {
		firstErr = d.queue.Close()
	}
	if d.catalog != nil {
		if err := d.catalog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		Workflow:      d.workflow.Status(ctx),
		CatalogDBPath: d.cfg.DatabasePath(),
		QueueDBPath:   d.cfg.QueueDatabasePath(),
		LockFilePath:  d.lockPath,
		PID:           os.Getpid(),
	}
}

// ListJobs returns the most recent queue jobs.
func (d *Daemon) ListJobs(ctx context.Context, limit int) ([]*jobqueue.Job, error) {
	return d.queue.List(ctx, limit)
}

// JobByID returns a single queue job.
func (d *Daemon) JobByID(ctx context.Context, id int64) (*jobqueue.Job, error) {
	return d.queue.ByID(ctx, id)
}

// ClearCompletedJobs removes completed queue jobs.
func (d *Daemon) ClearCompletedJobs(ctx context.Context) (int64, error) {
	return d.queue.ClearCompleted(ctx)
}

// TriggerStage enqueues a pipeline stage out of schedule.
func (d *Daemon) TriggerStage(ctx context.Context, jobType string) (bool, error) {
	return d.scheduler.Trigger(ctx, jobType)
}

// AddOrganization registers an organization channel for discovery.
func (d *Daemon) AddOrganization(ctx context.Context, name, channelID string) (*catalog.Organization, error) {
	name = strings.TrimSpace(name)
	channelID = strings.TrimSpace(channelID)
	if name == "" || channelID == "" {
		return nil, errors.New("organization name and channel id are required")
	}
	org, err := d.catalog.CreateOrganization(ctx, name, channelID)
	if err != nil {
		return nil, err
	}
	d.logger.Info("organization registered",
		logging.Int64("organization_id", org.ID), logging.String("name", name))
	return org, nil
}

// AddCreator registers an independent creator channel for discovery.
func (d *Daemon) AddCreator(ctx context.Context, name, channelID string) (*catalog.Creator, error) {
	name = strings.TrimSpace(name)
	channelID = strings.TrimSpace(channelID)
	if name == "" || channelID == "" {
		return nil, errors.New("creator name and channel id are required")
	}
	creator, err := d.catalog.CreateCreator(ctx, name, channelID)
	if err != nil {
		return nil, err
	}
	d.logger.Info("creator registered",
		logging.Int64("creator_id", creator.ID), logging.String("name", name))
	return creator, nil
}

// ListOrganizations returns every registered organization.
func (d *Daemon) ListOrganizations(ctx context.Context) ([]*catalog.Organization, error) {
	return d.catalog.AllOrganizations(ctx)
}

// ListCreators returns every registered creator.
func (d *Daemon) ListCreators(ctx context.Context) ([]*catalog.Creator, error) {
	return d.catalog.AllCreators(ctx)
}

// RecentRuns returns the latest discovery audit rows.
func (d *Daemon) RecentRuns(ctx context.Context, limit int) ([]*catalog.SyncJob, error) {
	return d.catalog.RecentSyncJobs(ctx, limit)
}

// PromotedCount reports the production catalog size.
func (d *Daemon) PromotedCount(ctx context.Context) (int64, error) {
	return d.catalog.PromotedCount(ctx)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.WebhookURL) == "" {
		return false, "webhook not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
