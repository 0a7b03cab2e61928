package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/logging"
	"dashvault/internal/services"
)

// Handler executes one claimed job. A nil error marks the job completed with
// the returned serialized result; an error marks it failed with the error
// text. The scheduler owns both terminal transitions, so handlers never call
// MarkCompleted or MarkFailed themselves.
type Handler interface {
	Execute(ctx context.Context, job *catalog.Job) (resultJSON string, err error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *catalog.Job) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, job *catalog.Job) (string, error) {
	return f(ctx, job)
}

// Scheduler owns the lane loops and the handler registry.
type Scheduler struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger

	pollInterval  time.Duration
	retryInterval time.Duration

	handlers map[catalog.JobType]Handler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:           cfg,
		store:         store,
		logger:        logging.NewComponentLogger(logger, "scheduler"),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		handlers:      make(map[catalog.JobType]Handler),
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (s *Scheduler) Register(jobType catalog.JobType, handler Handler) {
	s.handlers[jobType] = handler
}

// Start recovers interrupted jobs and launches both lane loops plus the
// stale-job sweeper.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	if len(s.handlers) == 0 {
		s.mu.Unlock()
		return errors.New("no job handlers registered")
	}

	requeued, failed, err := s.store.RecoverInterrupted(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if requeued > 0 || failed > 0 {
		s.logger.Info("recovered interrupted jobs",
			logging.Int64("requeued", requeued),
			logging.Int64("failed", failed),
			logging.String(logging.FieldEventType, "crash_recovery"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(3)
	s.mu.Unlock()

	go s.runLane(runCtx, catalog.LaneForeground)
	go s.runLane(runCtx, catalog.LaneBackground)
	go s.runStaleSweep(runCtx)
	return nil
}

// Stop cancels the loops and waits for in-flight handlers to finish. Jobs
// are never preempted mid-run; the stop takes effect at the next iteration.
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

func (s *Scheduler) runLane(ctx context.Context, lane catalog.Lane) {
	defer s.wg.Done()
	logger := s.logger.With(logging.String(logging.FieldLane, string(lane)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := s.store.ClaimNext(ctx, lane)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check catalog database access"),
			)
			s.sleep(ctx, s.retryInterval)
			continue
		}
		if job == nil {
			s.sleep(ctx, s.pollInterval)
			continue
		}

		s.processJob(ctx, logger, job)
	}
}

func (s *Scheduler) processJob(ctx context.Context, logger *slog.Logger, job *catalog.Job) {
	jobLogger := logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
	)

	// A claimed job always runs to its terminal state. Stopping the
	// scheduler cancels the lane loop, not the job in flight, so the
	// handler and the terminal transition run on an uncancelable context.
	runCtx := context.WithoutCancel(ctx)

	handler, ok := s.handlers[job.Type]
	if !ok {
		jobLogger.Error("no handler registered for job type",
			logging.String(logging.FieldEventType, "job_unhandled"),
		)
		if err := s.store.MarkFailed(runCtx, job.ID, "No handler registered for job type "+string(job.Type)); err != nil {
			jobLogger.Error("failed to mark unhandled job failed", logging.Error(err))
		}
		return
	}

	jobLogger.Info("job started", logging.String(logging.FieldEventType, "job_started"))
	start := time.Now()

	jobCtx := services.WithJobID(services.WithLane(runCtx, string(job.Lane())), job.ID)
	result, err := handler.Execute(jobCtx, job)
	if err != nil {
		jobLogger.Warn("job failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(start)),
			logging.Bool("permanent", services.IsPermanent(err)),
			logging.String(logging.FieldEventType, "job_failed"),
		)
		if markErr := s.store.MarkFailed(runCtx, job.ID, err.Error()); markErr != nil {
			jobLogger.Error("failed to record job failure", logging.Error(markErr))
		}
		s.sleep(ctx, s.retryInterval)
		return
	}

	if markErr := s.store.MarkCompleted(runCtx, job.ID, result); markErr != nil {
		jobLogger.Error("failed to mark job completed", logging.Error(markErr))
		return
	}
	jobLogger.Info("job completed",
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
}

func (s *Scheduler) runStaleSweep(ctx context.Context) {
	defer s.wg.Done()
	interval := time.Duration(s.cfg.Workflow.StaleCheckInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Duration(s.cfg.Workflow.StaleJobTimeout) * time.Second)
			requeued, err := s.store.RequeueStale(ctx, cutoff)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("stale job sweep failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "stale_sweep_failed"),
					logging.String(logging.FieldErrorHint, "check catalog database access"),
				)
				continue
			}
			if requeued > 0 {
				s.logger.Info("requeued stale jobs",
					logging.Int64("count", requeued),
					logging.String(logging.FieldEventType, "stale_sweep"),
				)
			}
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
