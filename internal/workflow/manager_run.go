package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
	"bandstand/internal/services"
	"bandstand/internal/stage"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	lanes := m.lanes

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workerCount := 0
	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
		workerCount += lane.workers
	}
	m.wg.Add(workerCount)
	m.mu.Unlock()

	for _, lane := range lanes {
		for i := 0; i < lane.workers; i++ {
			go m.runWorker(runCtx, lane, i == 0)
		}
	}
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// runWorker is one claim loop. The first worker of a reclaimer lane also
// sweeps stale running jobs each iteration.
func (m *Manager) runWorker(ctx context.Context, lane *laneState, reclaimer bool) {
	defer m.wg.Done()
	logger := lane.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if reclaimer && lane.runReclaimer {
			if err := m.heartbeat.ReclaimStaleJobs(ctx, logger); err != nil {
				logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}

		job, err := m.store.Claim(ctx, lane.kind)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, lane, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetry):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) processJob(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *jobqueue.Job) error {
	handler, ok := m.handlerFor(job.Type)
	if !ok {
		laneLogger.Error("no handler registered for job type",
			logging.String("job_type", job.Type), logging.Int64(logging.FieldJobID, job.ID))
		if err := m.store.Fail(ctx, job.ID, fmt.Sprintf("no handler registered for job type %q", job.Type)); err != nil {
			laneLogger.Error("failed to persist unhandled job", logging.Error(err))
		}
		return nil
	}

	requestID := uuid.NewString()
	jobCtx := withJobContext(ctx, lane, job, requestID)
	logger := logging.WithContext(jobCtx, laneLogger)

	jobStart := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("job_type", job.Type),
		logging.Int("attempt", job.Attempts))

	if err := handler.Prepare(jobCtx, job); err != nil {
		return m.settleFailure(jobCtx, logger, job, err)
	}

	execErr := m.executeWithHeartbeat(jobCtx, handler, job)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("job interrupted by shutdown")
			return execErr
		}
		return m.settleFailure(jobCtx, logger, job, execErr)
	}

	if err := m.store.Complete(jobCtx, job.ID); err != nil {
		wrapped := fmt.Errorf("persist job completion: %w", err)
		logger.Error("failed to persist job completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Duration("job_duration", time.Since(jobStart)))
	m.setLastJob(job)
	return nil
}

// settleFailure routes a handler error into the queue retry policy. A
// rate-limit error reschedules the job at the provider-supplied time without
// burning an attempt; everything else goes through exponential backoff.
func (m *Manager) settleFailure(ctx context.Context, logger *slog.Logger, job *jobqueue.Job, jobErr error) error {
	m.setLastError(jobErr)

	if errors.Is(jobErr, services.ErrRateLimited) {
		delay := services.RetryDelay(jobErr, m.errorRetry)
		logger.Warn("job rate limited, rescheduling",
			logging.Duration("retry_after", delay),
			logging.String(logging.FieldEventType, "job_rate_limited"))
		if err := m.store.RetryAt(ctx, job.ID, time.Now().Add(delay), jobErr.Error()); err != nil {
			logger.Error("failed to reschedule rate-limited job", logging.Error(err))
			return err
		}
		return jobErr
	}

	logger.Error("job failed",
		logging.Error(jobErr),
		logging.String(logging.FieldEventType, "job_failure"),
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", job.MaxAttempts))
	if err := m.store.Fail(ctx, job.ID, jobErr.Error()); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	m.setLastJob(job)
	return jobErr
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *jobqueue.Job) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := handler.Execute(ctx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) handlerFor(jobType string) (stage.Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handler, ok := m.handlers[jobType]
	return handler, ok
}

func (m *Manager) laneLogger(lane *laneState) *slog.Logger {
	if m.logger == nil {
		return logging.NewNop()
	}
	return m.logger.With(
		logging.String(logging.FieldComponent, fmt.Sprintf("workflow-%s-runner", lane.kind)),
		logging.String(logging.FieldLane, string(lane.kind)),
	)
}

func withJobContext(ctx context.Context, lane *laneState, job *jobqueue.Job, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
		ctx = services.WithStage(ctx, job.Type)
	}
	if lane != nil {
		ctx = services.WithLane(ctx, string(lane.kind))
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
