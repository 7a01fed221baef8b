// Package jobs polls the jobs table and dispatches claimed work to
// executors, with a cancellation registry so API-side cancels reach
// in-flight crawls.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scorch/internal/metrics"
	"scorch/internal/store"
)

// Executor runs one claimed job to a terminal state.
type Executor interface {
	Execute(ctx context.Context, job store.Job)
}

// CancelRegistry maps running job IDs to their cancel functions.
type CancelRegistry struct {
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancels: make(map[uuid.UUID]context.CancelFunc)}
}

func (r *CancelRegistry) register(id uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[id] = cancel
}

func (r *CancelRegistry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, id)
}

// Cancel aborts the job if it is running on this worker. Returns
// whether a running job was found.
func (r *CancelRegistry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// RunnerOptions tune the polling loop.
type RunnerOptions struct {
	PollInterval    time.Duration
	MaxJobs         int
	CleanupInterval time.Duration
}

// Runner claims pending jobs and runs them under a concurrency limit.
type Runner struct {
	store     *store.Store
	executors map[string]Executor
	cancels   *CancelRegistry
	logger    *slog.Logger
	opts      RunnerOptions
}

func NewRunner(st *store.Store, executors map[string]Executor, cancels *CancelRegistry, logger *slog.Logger, opts RunnerOptions) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 4
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cancels == nil {
		cancels = NewCancelRegistry()
	}
	return &Runner{
		store:     st,
		executors: executors,
		cancels:   cancels,
		logger:    logger,
		opts:      opts,
	}
}

func (r *Runner) Cancels() *CancelRegistry { return r.cancels }

// Start runs the polling loop until ctx is cancelled. Callers run it
// in its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	sem := make(chan struct{}, r.opts.MaxJobs)
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	var lastCleanup time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if now := time.Now(); lastCleanup.IsZero() || now.Sub(lastCleanup) >= r.opts.CleanupInterval {
			if n, err := r.store.DeleteExpired(ctx); err != nil {
				r.logger.Warn("retention cleanup failed", "error", err)
			} else if n > 0 {
				metrics.RecordRetentionJobs(n)
				r.logger.Info("retention cleanup removed expired jobs", "jobs", n)
			}
			lastCleanup = now
		}

		for len(sem) < r.opts.MaxJobs {
			job, err := r.store.ClaimPendingJob(ctx, store.KindCrawl)
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			if err != nil {
				r.logger.Warn("claiming job failed", "error", err)
				break
			}

			sem <- struct{}{}
			go func(job store.Job) {
				defer func() { <-sem }()
				r.dispatch(ctx, job)
			}(job)
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, job store.Job) {
	exec, ok := r.executors[job.Kind]
	if !ok {
		r.logger.Error("no executor for job kind", "kind", job.Kind, "job_id", job.ID)
		_ = r.store.UpdateJobStatus(context.Background(), job.ID, store.StatusFailed, "UNKNOWN_JOB_TYPE: "+job.Kind)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.cancels.register(job.ID, cancel)
	defer func() {
		cancel()
		r.cancels.remove(job.ID)
	}()

	r.logger.Info("job started", "kind", job.Kind, "job_id", job.ID, "url", job.URL)
	exec.Execute(jobCtx, job)
}
