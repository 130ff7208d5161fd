package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"ai_news_writer/generator"
)

// Generator produces an article for a request. *generator.Agent implements it.
type Generator interface {
	Generate(ctx context.Context, req generator.GenerationRequest) (generator.GenerationResult, error)
}

// Runner executes generation jobs in the background, at most maxConcurrent at
// a time.
type Runner struct {
	gen     Generator
	store   *Store
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type RunnerOption func(*Runner)

func WithMaxConcurrent(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithJobTimeout bounds one generation, queueing time excluded.
func WithJobTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(gen Generator, store *Store, opts ...RunnerOption) *Runner {
	ctx, stop := context.WithCancel(context.Background())
	r := &Runner{
		gen:     gen,
		store:   store,
		sem:     semaphore.NewWeighted(4),
		timeout: 60 * time.Second,
		logger:  zap.NewNop(),
		baseCtx: ctx,
		stop:    stop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Store() *Store { return r.store }

// Submit records a new job and starts it.
func (r *Runner) Submit(req generator.SubmitRequest) generator.JobUpdate {
	ctx, cancel := context.WithCancel(r.baseCtx)
	job := &Job{
		ID:      uuid.NewString(),
		Status:  generator.JobSubmitted,
		Request: req,
		cancel:  cancel,
	}
	r.store.put(job)
	r.logger.Info("job submitted", zap.String("job_id", job.ID))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, job.ID, req)
	}()
	return generator.JobUpdate{JobID: job.ID, Status: generator.JobSubmitted}
}

func (r *Runner) run(ctx context.Context, id string, req generator.SubmitRequest) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(id, generator.GenerationResult{}, err)
		return
	}
	defer r.sem.Release(1)

	if !r.store.update(id, func(j *Job) { j.Status = generator.JobProcessing }) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	res, err := r.gen.Generate(ctx, req.Request())
	r.finish(id, res, err)
	r.logger.Info("job finished", zap.String("job_id", id), zap.Duration("took", time.Since(start)), zap.Error(err))
}

func (r *Runner) finish(id string, res generator.GenerationResult, err error) {
	r.store.update(id, func(j *Job) {
		switch {
		case err == nil:
			j.Status = generator.JobSucceeded
			j.Result = &res
		case errors.Is(err, context.Canceled):
			j.Status = generator.JobCancelled
		default:
			j.Status = generator.JobFailed
			j.Error = err.Error()
		}
	})
}

// RunSync generates in the caller's goroutine, still counted against the
// concurrency limit.
func (r *Runner) RunSync(ctx context.Context, req generator.SubmitRequest) (generator.GenerationResult, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return generator.GenerationResult{}, err
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.gen.Generate(ctx, req.Request())
}

// Cancel marks a running job cancelled and stops its generation. Cancelling a
// finished job returns its final state unchanged.
func (r *Runner) Cancel(id string) (generator.JobUpdate, error) {
	var cancel context.CancelFunc
	r.store.update(id, func(j *Job) {
		j.Status = generator.JobCancelled
		cancel = j.cancel
	})
	if cancel != nil {
		cancel()
		r.logger.Info("job cancelled", zap.String("job_id", id))
	}
	return r.store.Get(id)
}

// Shutdown cancels running jobs and waits for their goroutines.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}
