package jobx

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-hq/meridian/pkg/errx"
)

// Store is the durable backend for job records.
//
// ClaimNext must atomically pick the eligible pending job with the lowest
// priority value (ties broken by oldest queued_at) and flip it to processing,
// returning nil when the queue is empty.
type Store interface {
	Insert(ctx context.Context, job *JobRecord) error
	ClaimNext(ctx context.Context) (*JobRecord, error)
	MarkCompleted(ctx context.Context, id string, attempts int, result json.RawMessage) error
	MarkFailed(ctx context.Context, id string, attempts int, errMsg string) error
	MarkRetry(ctx context.Context, id string, attempts int, errMsg string, retryAt time.Time) error
	GetJob(ctx context.Context, id string) (*JobRecord, error)
	Stats(ctx context.Context) (*QueueStats, error)
	ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LeaderLock guards dispatch so only one worker instance claims jobs at a
// time. Acquire returns true when this instance holds (or just obtained) the
// lock; a refused lock skips the tick rather than erroring.
type LeaderLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Worker owns a store handle and a processor registry and runs the polling
// dispatch loop. Construct it explicitly and share it; there is no package
// level instance.
type Worker struct {
	store    Store
	registry *Registry
	opts     WorkerOptions
	lock     LeaderLock
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWorker returns a fully initialized worker. The worker does not poll
// until Start is called.
func NewWorker(store Store, registry *Registry, log *zap.Logger, options ...WorkerOption) *Worker {
	opts := defaultWorkerOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Worker{
		store:    store,
		registry: registry,
		opts:     opts,
		log:      log.Named("jobx"),
	}
}

// WithLeaderLock attaches a dispatch lock, for deployments that may run more
// than one worker process against the same store.
func (w *Worker) WithLeaderLock(lock LeaderLock) *Worker {
	w.lock = lock
	return w
}

// AddJob inserts a new pending job and returns its ID. Enqueueing never
// checks processor registration; an unknown type fails at dispatch time so
// producers stay decoupled from processor availability.
func (w *Worker) AddJob(ctx context.Context, jobType string, payload json.RawMessage, priority int) (string, error) {
	if jobType == "" {
		return "", jobxErrors.New(ErrInvalidJob).WithDetail("reason", "job type is required")
	}

	job := &JobRecord{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		Status:      JobStatusPending,
		Priority:    priority,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		QueuedAt:    time.Now().UTC(),
	}

	if err := w.store.Insert(ctx, job); err != nil {
		return "", jobxErrors.NewWithCause(ErrStoreFailure, err).WithDetail("job_type", jobType)
	}

	w.log.Debug("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("job_type", jobType),
		zap.Int("priority", priority))
	return job.ID, nil
}

// GetJobStatus returns the current state of a job.
func (w *Worker) GetJobStatus(ctx context.Context, jobID string) (*JobRecord, error) {
	return w.store.GetJob(ctx, jobID)
}

// GetQueueStats returns per-status job counts.
func (w *Worker) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	return w.store.Stats(ctx)
}

// IsRunning reports whether the polling loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start launches the polling loop. Calling Start while the worker is already
// running is a logged no-op, not an error.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.log.Info("worker already running, ignoring start")
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.log.Info("worker starting",
		zap.Duration("poll_interval", w.opts.PollInterval),
		zap.Int("max_jobs_per_tick", w.opts.MaxJobsPerTick),
		zap.Strings("job_types", w.registry.Types()))

	go w.loop(stop, done)
}

// Stop halts the polling loop and blocks until the in-flight tick finishes.
// Jobs being processed are allowed to complete; nothing is force-cancelled.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.log.Info("worker stopped")
}

func (w *Worker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := context.Background()
	w.recoverStuck(ctx)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			w.releaseLock(ctx)
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if w.lock != nil {
		leader, err := w.lock.Acquire(ctx)
		if err != nil {
			w.log.Warn("leader lock check failed", zap.Error(err))
			return
		}
		if !leader {
			return
		}
	}

	for i := 0; i < w.opts.MaxJobsPerTick; i++ {
		processed, err := w.ProcessNextJob(ctx)
		if err != nil {
			w.log.Error("dispatch failed", zap.Error(err))
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessNextJob claims at most one eligible pending job, dispatches it to
// its processor and records the outcome. It returns false when no eligible
// job exists, which is not an error.
func (w *Worker) ProcessNextJob(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNext(ctx)
	if err != nil {
		return false, jobxErrors.NewWithCause(ErrStoreFailure, err)
	}
	if job == nil {
		return false, nil
	}

	w.runJob(ctx, job)
	return true, nil
}

func (w *Worker) runJob(ctx context.Context, job *JobRecord) {
	log := w.log.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Type),
		zap.Int("attempt", job.Attempts+1),
		zap.Int("max_attempts", job.MaxAttempts))

	proc, ok := w.registry.Lookup(job.Type)
	if !ok {
		// Configuration error: fail terminally without consuming a retry.
		log.Error("no processor registered, failing job")
		errNoProc := jobxErrors.New(ErrNoProcessor).WithDetail("job_type", job.Type)
		if err := w.store.MarkFailed(ctx, job.ID, job.Attempts, errNoProc.Error()); err != nil {
			log.Error("failed to mark job failed", zap.Error(err))
		}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()

	result, procErr := proc.Process(jobCtx, job)
	attempts := job.Attempts + 1

	if procErr != nil {
		if jobCtx.Err() == context.DeadlineExceeded {
			procErr = jobxErrors.NewWithCause(ErrJobTimeout, procErr).
				WithDetail("timeout", w.opts.JobTimeout.String())
		}
		w.recordFailure(ctx, job, attempts, procErr, log)
		return
	}

	if err := w.store.MarkCompleted(ctx, job.ID, attempts, result); err != nil {
		log.Error("failed to mark job completed", zap.Error(err))
		return
	}
	log.Info("job completed")
}

func (w *Worker) recordFailure(ctx context.Context, job *JobRecord, attempts int, procErr error, log *zap.Logger) {
	permanent := errx.IsPermanent(procErr)
	exhausted := attempts >= job.MaxAttempts

	if permanent || exhausted {
		log.Error("job failed terminally",
			zap.Bool("permanent", permanent),
			zap.Error(procErr))
		if err := w.store.MarkFailed(ctx, job.ID, attempts, procErr.Error()); err != nil {
			log.Error("failed to mark job failed", zap.Error(err))
		}
		return
	}

	retryAt := time.Now().UTC().Add(w.opts.RetryBackoff)
	log.Warn("job failed, scheduling retry",
		zap.Time("retry_at", retryAt),
		zap.Error(procErr))
	if err := w.store.MarkRetry(ctx, job.ID, attempts, procErr.Error(), retryAt); err != nil {
		log.Error("failed to schedule retry", zap.Error(err))
	}
}

func (w *Worker) recoverStuck(ctx context.Context) {
	n, err := w.store.ReleaseStuck(ctx, w.opts.StuckAfter)
	if err != nil {
		w.log.Warn("stuck job recovery failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Warn("released stuck jobs back to pending", zap.Int64("count", n))
	}
}

func (w *Worker) releaseLock(ctx context.Context) {
	if w.lock == nil {
		return
	}
	if err := w.lock.Release(ctx); err != nil {
		w.log.Warn("leader lock release failed", zap.Error(err))
	}
}
