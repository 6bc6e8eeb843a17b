// Package scheduler turns wall-clock fire times into queue jobs.
//
// Every tick it computes which pipeline stages are due and enqueues one job
// per stage with a deterministic key (stage plus calendar bucket). The queue
// deduplicates on the key, so a stage fires at most once per bucket no
// matter how many ticks or daemon restarts happen after its fire time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"bandstand/internal/config"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/workflow"
)

type jobSpec struct {
	key     string
	lane    jobqueue.Lane
	jobType string
}

// Scheduler enqueues pipeline jobs at their configured fire times.
type Scheduler struct {
	cfg    *config.Config
	queue  *jobqueue.Store
	logger *slog.Logger
	loc    *time.Location

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a scheduler using the host's local time zone for fire
// times.
func New(cfg *config.Config, queue *jobqueue.Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		queue:  queue,
		logger: logging.NewComponentLogger(logger, "scheduler"),
		loc:    time.Local,
	}
}

// Start begins the tick loop. Stale pending jobs left over from previous
// deployments are expired first so an old backlog does not fire at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(s.cfg.Queue.StaleJobHours) * time.Hour)
	if expired, err := s.queue.ExpireStalePending(runCtx, cutoff); err != nil {
		s.logger.Warn("expire stale pending jobs failed", logging.Error(err))
	} else if expired > 0 {
		s.logger.Info("expired leftover pending jobs", logging.Int64("jobs", expired))
	}

	go s.run(runCtx)
	return nil
}

// Stop terminates the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Trigger enqueues a stage out of schedule. The key embeds the current time
// so a manual run never collides with the scheduled one.
func (s *Scheduler) Trigger(ctx context.Context, jobType string) (bool, error) {
	lane, ok := laneForJobType(jobType)
	if !ok {
		return false, fmt.Errorf("unknown job type %q", jobType)
	}
	key := fmt.Sprintf("manual:%s:%d", jobType, time.Now().UnixNano())
	return s.queue.Enqueue(ctx, key, lane, jobType, nil)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	tick := time.Duration(s.cfg.Schedule.TickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.sweep(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	for _, spec := range s.dueJobs(now) {
		enqueued, err := s.queue.Enqueue(ctx, spec.key, spec.lane, spec.jobType, nil)
		if err != nil {
			s.logger.Error("enqueue scheduled job failed",
				logging.String("job_type", spec.jobType), logging.Error(err))
			continue
		}
		if enqueued {
			s.logger.Info("scheduled job enqueued",
				logging.String("job_type", spec.jobType),
				logging.String("job_key", spec.key))
		}
	}
}

// dueJobs lists every stage whose fire time has passed within the current
// calendar bucket. Keys repeat within a bucket, so the queue's key dedup
// keeps re-fires out.
func (s *Scheduler) dueJobs(now time.Time) []jobSpec {
	local := now.In(s.loc)
	day := local.Format("2006-01-02")
	specs := make([]jobSpec, 0, 6)

	daily := []struct {
		jobType string
		lane    jobqueue.Lane
		at      string
	}{
		{workflow.JobTypeDiscovery, jobqueue.LaneDiscovery, s.cfg.Schedule.DiscoveryTime},
		{workflow.JobTypeMatching, jobqueue.LaneEnrichment, s.cfg.Schedule.MatchingTime},
		{workflow.JobTypePromotion, jobqueue.LaneEnrichment, s.cfg.Schedule.PromotionTime},
		{workflow.JobTypeMaintenance, jobqueue.LaneMaintenance, s.cfg.Schedule.MaintenanceTime},
	}
	for _, stage := range daily {
		due, err := clockPassed(local, stage.at)
		if err != nil {
			s.logger.Warn("invalid schedule time",
				logging.String("job_type", stage.jobType), logging.Error(err))
			continue
		}
		if due {
			specs = append(specs, jobSpec{
				key:     stage.jobType + ":" + day,
				lane:    stage.lane,
				jobType: stage.jobType,
			})
		}
	}

	if weekday, err := parseWeekday(s.cfg.Schedule.ResyncWeekday); err != nil {
		s.logger.Warn("invalid resync weekday", logging.Error(err))
	} else if local.Weekday() == weekday {
		due, err := clockPassed(local, s.cfg.Schedule.ResyncTime)
		if err != nil {
			s.logger.Warn("invalid resync time", logging.Error(err))
		} else if due {
			year, week := local.ISOWeek()
			specs = append(specs, jobSpec{
				key:     fmt.Sprintf("%s:%d-W%02d", workflow.JobTypeFullResync, year, week),
				lane:    jobqueue.LaneDiscovery,
				jobType: workflow.JobTypeFullResync,
			})
		}
	}

	if every := s.cfg.Schedule.StatsRefreshHours; every > 0 {
		bucket := local.Hour() / every
		specs = append(specs, jobSpec{
			key:     fmt.Sprintf("%s:%s-%02d", workflow.JobTypeStatsRefresh, day, bucket),
			lane:    jobqueue.LaneEnrichment,
			jobType: workflow.JobTypeStatsRefresh,
		})
	}

	return specs
}

// clockPassed reports whether the local time of day is at or past an
// "HH:MM" mark.
func clockPassed(local time.Time, clock string) (bool, error) {
	hour, minute, err := parseClock(clock)
	if err != nil {
		return false, err
	}
	return local.Hour() > hour || (local.Hour() == hour && local.Minute() >= minute), nil
}

func parseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q is not HH:MM", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("clock %q has invalid hour", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q has invalid minute", clock)
	}
	return hour, minute, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("unknown weekday %q", name)
	}
}

func laneForJobType(jobType string) (jobqueue.Lane, bool) {
	switch jobType {
	case workflow.JobTypeDiscovery, workflow.JobTypeFullResync:
		return jobqueue.LaneDiscovery, true
	case workflow.JobTypeMatching, workflow.JobTypePromotion, workflow.JobTypeStatsRefresh:
		return jobqueue.LaneEnrichment, true
	case workflow.JobTypeMaintenance:
		return jobqueue.LaneMaintenance, true
	default:
		return "", false
	}
}
