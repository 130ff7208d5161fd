package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ai_news_writer/generator"
)

// DefaultPollInterval 与生成服务约定的轮询间隔。
const DefaultPollInterval = 2500 * time.Millisecond

var (
	ErrJobFailed          = errors.New("generation job failed")
	ErrJobCancelled       = errors.New("generation job cancelled")
	ErrUnexpectedResponse = errors.New("unexpected generation service response")
	// ErrPollStopped is the result of a poll task ended by Stop.
	ErrPollStopped = errors.New("polling stopped")
)

// Service is the generation service as seen by the writer.
type Service interface {
	Submit(ctx context.Context, req generator.SubmitRequest) (generator.JobUpdate, error)
	GetJob(ctx context.Context, jobID string) (generator.JobUpdate, error)
}

// Controller submits generation jobs and follows them to a terminal state.
type Controller struct {
	svc      Service
	interval time.Duration
	logger   *zap.Logger

	// afterFetch runs after a reply is accepted, right before it is dispatched.
	// Tests only.
	afterFetch func()
}

type ControllerOption func(*Controller)

func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithControllerLogger(l *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewController(svc Service, opts ...ControllerOption) *Controller {
	c := &Controller{
		svc:      svc,
		interval: DefaultPollInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends a copy of req. The reply is either terminal or carries a job id
// to poll.
func (c *Controller) Submit(ctx context.Context, req generator.GenerationRequest) (generator.JobUpdate, error) {
	up, err := c.svc.Submit(ctx, generator.NewSubmitRequest(req.Clone()))
	if err != nil {
		return generator.JobUpdate{}, fmt.Errorf("submit generation: %w", err)
	}
	if !up.Status.IsTerminal() && up.JobID == "" {
		return up, fmt.Errorf("%w: non-terminal status %q without job id", ErrUnexpectedResponse, up.Status)
	}
	c.logger.Info("generation submitted", zap.String("job_id", up.JobID), zap.String("status", string(up.Status)))
	return up, nil
}

// Poll starts following jobID. The first request goes out immediately, then one
// per interval. Transport errors are logged and polling continues; the task
// ends on a terminal status, Stop, or ctx cancellation.
func (c *Controller) Poll(ctx context.Context, jobID string, onUpdate func(generator.JobUpdate)) *PollTask {
	ctx, cancel := context.WithCancel(ctx)
	t := &PollTask{
		jobID:  jobID,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go t.run(ctx, c, onUpdate)
	return t
}

// Generate submits req and polls until the job ends. onUpdate sees the submit
// reply and every poll reply.
func (c *Controller) Generate(ctx context.Context, req generator.GenerationRequest, onUpdate func(generator.JobUpdate)) (generator.GenerationResult, error) {
	up, err := c.Submit(ctx, req)
	if err != nil {
		return generator.GenerationResult{}, err
	}
	if onUpdate != nil {
		onUpdate(up)
	}
	if !up.Status.IsTerminal() {
		task := c.Poll(ctx, up.JobID, onUpdate)
		<-task.Done()
		if up, err = task.Result(); err != nil {
			return generator.GenerationResult{}, err
		}
	}
	return finalResult(up)
}

func finalResult(up generator.JobUpdate) (generator.GenerationResult, error) {
	switch up.Status {
	case generator.JobSucceeded:
		if up.Result == nil {
			return generator.GenerationResult{}, fmt.Errorf("%w: job %s succeeded without result", ErrUnexpectedResponse, up.JobID)
		}
		return *up.Result, nil
	case generator.JobFailed:
		if up.Error != "" {
			return generator.GenerationResult{}, fmt.Errorf("%w: %s", ErrJobFailed, up.Error)
		}
		return generator.GenerationResult{}, ErrJobFailed
	case generator.JobCancelled:
		return generator.GenerationResult{}, ErrJobCancelled
	}
	return generator.GenerationResult{}, fmt.Errorf("%w: status %q", ErrUnexpectedResponse, up.Status)
}

// PollTask is a running poll loop for one job.
type PollTask struct {
	jobID string
	// mu orders Stop against dispatching a reply to the callback.
	mu       sync.Mutex
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc

	result generator.JobUpdate
	err    error
}

// Stop ends polling. No request is issued and no callback starts after Stop;
// a reply already in flight is discarded. Safe to call more than once and from
// inside the update callback.
func (t *PollTask) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped.Store(true)
		t.mu.Unlock()
		close(t.stopCh)
		t.cancel()
	})
}

// Done is closed when the loop has exited.
func (t *PollTask) Done() <-chan struct{} {
	return t.done
}

// Result returns the terminal update, or why polling ended without one. Only
// meaningful after Done is closed.
func (t *PollTask) Result() (generator.JobUpdate, error) {
	<-t.done
	return t.result, t.err
}

func (t *PollTask) run(ctx context.Context, c *Controller, onUpdate func(generator.JobUpdate)) {
	defer close(t.done)
	defer t.cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-t.stopCh:
			t.err = ErrPollStopped
			return
		case <-ctx.Done():
			t.err = t.endErr(ctx)
			return
		case <-timer.C:
		}
		if t.stopped.Load() || ctx.Err() != nil {
			t.err = t.endErr(ctx)
			return
		}

		up, err := c.svc.GetJob(ctx, t.jobID)
		if t.stopped.Load() {
			t.err = ErrPollStopped
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				t.err = t.endErr(ctx)
				return
			}
			c.logger.Warn("poll generation job failed",
				zap.String("job_id", t.jobID), zap.Int("attempt", attempt), zap.Error(err))
			timer.Reset(c.interval)
			continue
		}
		if up.JobID == "" {
			up.JobID = t.jobID
		}
		if c.afterFetch != nil {
			c.afterFetch()
		}
		if !t.dispatch(onUpdate, up) {
			t.err = ErrPollStopped
			return
		}
		if up.Status.IsTerminal() {
			t.result = up
			return
		}
		timer.Reset(c.interval)
	}
}

// dispatch hands up to onUpdate unless Stop got there first. Once Stop has
// returned no dispatch can begin; mu is released before the callback so the
// callback itself may call Stop.
func (t *PollTask) dispatch(onUpdate func(generator.JobUpdate), up generator.JobUpdate) bool {
	t.mu.Lock()
	if t.stopped.Load() {
		t.mu.Unlock()
		return false
	}
	t.mu.Unlock()
	if onUpdate != nil {
		onUpdate(up)
	}
	return true
}

func (t *PollTask) endErr(ctx context.Context) error {
	if t.stopped.Load() {
		return ErrPollStopped
	}
	return ctx.Err()
}
