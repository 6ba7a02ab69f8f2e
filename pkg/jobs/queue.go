package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownJob is returned when cancelling a job the queue never saw or already finished.
var ErrUnknownJob = errors.New("unknown job")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. The context is cancelled when the queue stops or the job is cancelled.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// permanentError marks failures that must not be retried.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the queue does not retry the job.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines. Individual jobs
// can be cancelled while queued or running.
type Queue struct {
	name    string
	handler Handler

	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	pending   map[string]bool
	running   map[string]context.CancelFunc
	cancelled map[string]bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		pending:    make(map[string]bool),
		running:    make(map[string]context.CancelFunc),
		cancelled:  make(map[string]bool),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers, waits for them to exit and returns the jobs still buffered.
// Returned jobs never ran; the caller owns reporting them.
func (q *Queue) Stop() []Job {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return nil
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	var dropped []Job
	for drained := false; !drained; {
		select {
		case job := <-q.jobs:
			dropped = append(dropped, job)
		default:
			drained = true
		}
	}
	q.mu.Lock()
	for _, job := range dropped {
		delete(q.pending, job.ID)
		delete(q.cancelled, job.ID)
	}
	q.mu.Unlock()

	q.logger.Sugar().Infow("queue stopped", "queue", q.name, "dropped", len(dropped))
	return dropped
}

// Enqueue pushes a job onto the queue. It fails fast when the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	q.mu.Lock()
	q.pending[job.ID] = true
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		q.forget(job.ID)
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	default:
		q.forget(job.ID)
		return fmt.Errorf("queue %s is full (%d jobs)", q.name, q.bufferSize)
	}
}

// Cancel stops a running job or drops a queued one before it starts.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cancel, ok := q.running[id]; ok {
		cancel()
		return nil
	}
	if q.pending[id] {
		q.cancelled[id] = true
		return nil
	}
	return ErrUnknownJob
}

func (q *Queue) forget(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for {
		if q.ctx.Err() != nil {
			return
		}
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(workerID, job)
		}
	}
}

func (q *Queue) run(workerID int, job Job) {
	ctx, cancel := context.WithCancel(q.ctx)
	defer cancel()

	q.mu.Lock()
	delete(q.pending, job.ID)
	if q.cancelled[job.ID] {
		delete(q.cancelled, job.ID)
		q.mu.Unlock()
		cancel()
	} else {
		q.running[job.ID] = cancel
		q.mu.Unlock()
	}

	err := q.handler(ctx, job)

	q.mu.Lock()
	delete(q.running, job.ID)
	q.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		q.handleFailure(job, err)
		return
	}
	q.logger.Sugar().Debugw("job finished", "queue", q.name, "job_id", job.ID, "worker", workerID, "cancelled", ctx.Err() != nil)
}

func (q *Queue) handleFailure(job Job, err error) {
	var permanent permanentError
	job.Attempt++
	if errors.As(err, &permanent) || job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job failed", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempts", job.Attempt, "error", err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}
