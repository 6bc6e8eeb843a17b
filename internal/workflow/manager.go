package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/stage"
)

// JobType names for the pipeline stages the scheduler enqueues.
const (
	JobTypeDiscovery    = "discovery"
	JobTypeFullResync   = "full_resync"
	JobTypeMatching     = "matching"
	JobTypePromotion    = "promotion"
	JobTypeStatsRefresh = "stats_refresh"
	JobTypeMaintenance  = "maintenance"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
// A nil handler leaves its job type unregistered.
type StageSet struct {
	Discovery    stage.Handler
	FullResync   stage.Handler
	Matching     stage.Handler
	Promotion    stage.Handler
	StatsRefresh stage.Handler
	Maintenance  stage.Handler
}

type registeredStage struct {
	jobType string
	handler stage.Handler
}

type laneState struct {
	kind         jobqueue.Lane
	workers      int
	runReclaimer bool
	logger       *slog.Logger
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *jobqueue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	errorRetry   time.Duration

	heartbeat *HeartbeatMonitor

	handlers   map[string]stage.Handler
	stageOrder []registeredStage
	lanes      []*laneState

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *jobqueue.Job
}

// NewManager constructs a workflow manager. Call ConfigureStages before
// Start.
func NewManager(cfg *config.Config, store *jobqueue.Store, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		pollInterval: time.Duration(cfg.Queue.PollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Queue.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Queue.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Queue.HeartbeatTimeout)*time.Second,
		),
		handlers: make(map[string]stage.Handler),
	}
}

// ConfigureStages registers the concrete stage handlers and builds the lane
// worker pools. The discovery lane also runs the stale-job reclaimer.
func (m *Manager) ConfigureStages(set StageSet) {
	handlers := make(map[string]stage.Handler)
	order := make([]registeredStage, 0, 6)
	register := func(jobType string, handler stage.Handler) {
		if handler == nil {
			return
		}
		handlers[jobType] = handler
		order = append(order, registeredStage{jobType: jobType, handler: handler})
	}
	register(JobTypeDiscovery, set.Discovery)
	register(JobTypeFullResync, set.FullResync)
	register(JobTypeMatching, set.Matching)
	register(JobTypePromotion, set.Promotion)
	register(JobTypeStatsRefresh, set.StatsRefresh)
	register(JobTypeMaintenance, set.Maintenance)

	lanes := []*laneState{
		{kind: jobqueue.LaneDiscovery, workers: max(1, m.cfg.Lanes.Discovery), runReclaimer: true},
		{kind: jobqueue.LaneEnrichment, workers: max(1, m.cfg.Lanes.Enrichment)},
		{kind: jobqueue.LaneMaintenance, workers: max(1, m.cfg.Lanes.Maintenance)},
	}

	m.mu.Lock()
	m.handlers = handlers
	m.stageOrder = order
	m.lanes = lanes
	m.mu.Unlock()
}
