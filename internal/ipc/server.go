package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"bandstand/internal/catalog"
	"bandstand/internal/daemon"
	"bandstand/internal/jobqueue"
	"bandstand/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Bandstand", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func convertJob(job *jobqueue.Job) Job {
	wire := Job{
		ID:          job.ID,
		Key:         job.Key,
		Lane:        string(job.Lane),
		Type:        job.Type,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		LastError:   job.LastError,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
	if !job.RunAfter.IsZero() {
		wire.RunAfter = job.RunAfter.Format(time.RFC3339)
	}
	return wire
}

func convertOrganization(org *catalog.Organization) Source {
	source := Source{
		ID:         org.ID,
		Kind:       string(catalog.SourceOrganization),
		Name:       org.Name,
		ChannelID:  org.ExternalChannelID,
		Active:     org.IsActive,
		SyncStatus: string(org.SyncStatus),
	}
	if org.LastSyncAt != nil {
		source.LastSyncAt = org.LastSyncAt.Format(time.RFC3339)
	}
	return source
}

func convertCreator(creator *catalog.Creator) Source {
	source := Source{
		ID:         creator.ID,
		Kind:       string(catalog.SourceCreator),
		Name:       creator.Name,
		ChannelID:  creator.ExternalChannelID,
		Active:     creator.IsActive,
		SyncStatus: string(creator.SyncStatus),
	}
	if creator.LastSyncAt != nil {
		source.LastSyncAt = creator.LastSyncAt.Format(time.RFC3339)
	}
	return source
}

func convertRun(run *catalog.SyncJob) Run {
	wire := Run{
		ID:      run.ID,
		JobType: run.JobType,
		Status:  string(run.Status),
		Found:   run.VideosFound,
		Added:   run.VideosAdded,
		Updated: run.VideosUpdated,
		Errors:  run.Errors,
	}
	if run.StartedAt != nil {
		wire.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.CompletedAt != nil {
		wire.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return wire
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.LockPath = status.LockFilePath
	resp.CatalogDBPath = status.CatalogDBPath
	resp.QueueDBPath = status.QueueDBPath
	resp.PID = status.PID
	resp.LastError = status.Workflow.LastError
	resp.QueueStats = make(map[string]int, len(status.Workflow.QueueStats))
	for k, v := range status.Workflow.QueueStats {
		resp.QueueStats[string(k)] = v
	}
	if status.Workflow.LastJob != nil {
		job := convertJob(status.Workflow.LastJob)
		resp.LastJob = &job
	}
	if len(status.Workflow.StageHealth) > 0 {
		names := make([]string, 0, len(status.Workflow.StageHealth))
		for name := range status.Workflow.StageHealth {
			names = append(names, name)
		}
		sort.Strings(names)
		resp.StageHealth = make([]StageHealth, 0, len(names))
		for _, name := range names {
			health := status.Workflow.StageHealth[name]
			resp.StageHealth = append(resp.StageHealth, StageHealth{
				Name:   name,
				Ready:  health.Ready,
				Detail: health.Detail,
			})
		}
	}
	if count, err := s.daemon.PromotedCount(s.ctx); err == nil {
		resp.PromotedCount = count
	}
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.daemon.ListJobs(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Jobs = make([]Job, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, convertJob(job))
	}
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid job id %d", req.ID)
	}
	job, err := s.daemon.JobByID(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = convertJob(job)
	return nil
}

func (s *service) QueueClearCompleted(_ QueueClearCompletedRequest, resp *QueueClearCompletedResponse) error {
	removed, err := s.daemon.ClearCompletedJobs(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("completed jobs cleared",
		logging.String(logging.FieldEventType, "queue_clear_completed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Trigger(req TriggerRequest, resp *TriggerResponse) error {
	enqueued, err := s.daemon.TriggerStage(s.ctx, req.JobType)
	if err != nil {
		return err
	}
	resp.Enqueued = enqueued
	if enqueued {
		resp.Message = fmt.Sprintf("%s job enqueued", req.JobType)
	} else {
		resp.Message = fmt.Sprintf("%s job already queued", req.JobType)
	}
	s.log().Info("stage triggered via IPC",
		logging.String(logging.FieldEventType, "stage_trigger"),
		logging.String("job_type", req.JobType))
	return nil
}

func (s *service) SourceAdd(req SourceAddRequest, resp *SourceAddResponse) error {
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case string(catalog.SourceOrganization):
		org, err := s.daemon.AddOrganization(s.ctx, req.Name, req.ChannelID)
		if err != nil {
			return err
		}
		resp.Source = convertOrganization(org)
	case string(catalog.SourceCreator):
		creator, err := s.daemon.AddCreator(s.ctx, req.Name, req.ChannelID)
		if err != nil {
			return err
		}
		resp.Source = convertCreator(creator)
	default:
		return fmt.Errorf("unknown source kind %q", req.Kind)
	}
	return nil
}

func (s *service) SourceList(_ SourceListRequest, resp *SourceListResponse) error {
	orgs, err := s.daemon.ListOrganizations(s.ctx)
	if err != nil {
		return err
	}
	creators, err := s.daemon.ListCreators(s.ctx)
	if err != nil {
		return err
	}
	resp.Sources = make([]Source, 0, len(orgs)+len(creators))
	for _, org := range orgs {
		resp.Sources = append(resp.Sources, convertOrganization(org))
	}
	for _, creator := range creators {
		resp.Sources = append(resp.Sources, convertCreator(creator))
	}
	return nil
}

func (s *service) RunList(req RunListRequest, resp *RunListResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.daemon.RecentRuns(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Runs = make([]Run, 0, len(runs))
	for _, run := range runs {
		resp.Runs = append(resp.Runs, convertRun(run))
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
