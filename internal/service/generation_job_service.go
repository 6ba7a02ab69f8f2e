package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
)

const (
	jobTypeGenerate     = "timetable.generate"
	subscriberBuffer    = 32
	defaultJobRetention = time.Hour
)

// generationJob tracks one background generation. Subscribers receive progress
// updates; their channels are closed once the job reaches a terminal state.
type generationJob struct {
	state       dto.JobResponse
	request     dto.GenerateTimetableRequest
	subscribers map[chan dto.JobProgress]struct{}
}

// GenerationJobService runs generations on a worker queue and fans progress out to
// subscribers such as SSE streams.
type GenerationJobService struct {
	generator *TimetableGeneratorService
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*generationJob
}

// GenerationJobConfig sizes the job queue.
type GenerationJobConfig struct {
	Workers   int
	Buffer    int
	Retention time.Duration
}

// NewGenerationJobService builds the service and its queue. Call Start before submitting.
func NewGenerationJobService(generator *TimetableGeneratorService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg GenerationJobConfig) *GenerationJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultJobRetention
	}
	s := &GenerationJobService{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retention: cfg.Retention,
		now:       func() time.Time { return time.Now().UTC() },
		jobs:      make(map[string]*generationJob),
	}
	s.queue = jobs.NewQueue("timetable-generation", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		Logger:     logger,
	})
	return s
}

// Start launches queue workers bound to ctx.
func (s *GenerationJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels running jobs and waits for workers to exit. Jobs that never left the
// queue are marked cancelled.
func (s *GenerationJobService) Stop() {
	for _, queued := range s.queue.Stop() {
		s.finish(queued.ID, nil, appErrors.Clone(appErrors.ErrCancelled, "generation queue stopped before the job started"))
		s.metrics.JobFinished()
	}
}

// Submit validates the request and queues a generation job.
func (s *GenerationJobService) Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.JobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	job := &generationJob{
		state: dto.JobResponse{
			ID:        uuid.NewString(),
			Status:    dto.JobStatusQueued,
			CreatedAt: s.now(),
		},
		request:     req,
		subscribers: make(map[chan dto.JobProgress]struct{}),
	}

	s.mu.Lock()
	s.purgeLocked()
	s.jobs[job.state.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.state.ID, Type: jobTypeGenerate}); err != nil {
		s.mu.Lock()
		delete(s.jobs, job.state.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation queue unavailable")
	}
	s.metrics.JobStarted()
	s.logger.Info("generation job queued", zap.String("job_id", job.state.ID))
	snapshot := job.state
	return &snapshot, nil
}

// Status returns a snapshot of the job.
func (s *GenerationJobService) Status(id string) (*dto.JobResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	snapshot := job.state
	return &snapshot, nil
}

// Subscribe streams progress for the job. The channel is closed when the job ends;
// callers then read the final state with Status. unsubscribe must be called when
// the consumer goes away early.
func (s *GenerationJobService) Subscribe(id string) (<-chan dto.JobProgress, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	ch := make(chan dto.JobProgress, subscriberBuffer)
	if job.state.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	if job.state.Progress != nil {
		ch <- *job.state.Progress
	}
	job.subscribers[ch] = struct{}{}
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := job.subscribers[ch]; ok {
				delete(job.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe, nil
}

// Cancel stops a queued or running job. Cancelling a finished job is a conflict.
func (s *GenerationJobService) Cancel(id string) (*dto.JobResponse, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	if job.state.Terminal() {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "job already finished")
	}
	s.mu.Unlock()

	if err := s.queue.Cancel(id); err != nil && !errors.Is(err, jobs.ErrUnknownJob) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel job")
	}
	s.logger.Info("generation job cancel requested", zap.String("job_id", id))
	return s.Status(id)
}

func (s *GenerationJobService) handle(ctx context.Context, queued jobs.Job) error {
	s.mu.Lock()
	job, ok := s.jobs[queued.ID]
	if !ok {
		s.mu.Unlock()
		return jobs.Permanent(errors.New("job vanished"))
	}
	started := s.now()
	job.state.Status = dto.JobStatusRunning
	job.state.StartedAt = &started
	req := job.request
	s.mu.Unlock()

	var (
		resp *dto.GenerateTimetableResponse
		err  error
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = appErrors.Wrap(ctxErr, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
	} else {
		resp, err = s.generator.generate(ctx, req, generationHooks{
			progress: func(p scheduler.Progress) { s.publish(queued.ID, p, false) },
			onRun:    func(scheduler.RunStats) { s.publish(queued.ID, scheduler.Progress{}, true) },
		})
	}
	s.finish(queued.ID, resp, err)
	s.metrics.JobFinished()
	if err != nil && !errors.Is(err, appErrors.ErrCancelled) {
		return jobs.Permanent(err)
	}
	return nil
}

func (s *GenerationJobService) publish(id string, p scheduler.Progress, runFinished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.state.Terminal() {
		return
	}
	current := dto.JobProgress{}
	if job.state.Progress != nil {
		current = *job.state.Progress
	}
	if runFinished {
		current.Runs++
	} else {
		current.Seed = p.Seed
		current.Assigned = p.Assigned
		current.Total = p.Total
		if p.Best > current.Best {
			current.Best = p.Best
		}
	}
	job.state.Progress = &current
	for ch := range job.subscribers {
		select {
		case ch <- current:
		default:
		}
	}
}

func (s *GenerationJobService) finish(id string, resp *dto.GenerateTimetableResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	finished := s.now()
	job.state.FinishedAt = &finished
	switch {
	case err == nil:
		job.state.Status = dto.JobStatusSucceeded
		job.state.Result = resp
	case errors.Is(err, appErrors.ErrCancelled):
		job.state.Status = dto.JobStatusCancelled
		job.state.Error = appErrors.FromError(err)
	default:
		job.state.Status = dto.JobStatusFailed
		job.state.Error = appErrors.FromError(err)
	}
	for ch := range job.subscribers {
		delete(job.subscribers, ch)
		close(ch)
	}
	s.logger.Info("generation job finished", zap.String("job_id", id), zap.String("status", job.state.Status))
}

// purgeLocked drops terminal jobs older than the retention window.
func (s *GenerationJobService) purgeLocked() {
	cutoff := s.now().Add(-s.retention)
	for id, job := range s.jobs {
		if job.state.Terminal() && job.state.FinishedAt != nil && job.state.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
