package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
)

func newJobService(t *testing.T) *GenerationJobService {
	t.Helper()
	svc := NewGenerationJobService(newGeneratorFixture(t).service, NewMetricsService(), nil, zap.NewNop(), GenerationJobConfig{Workers: 1})
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitTerminal(t *testing.T, svc *GenerationJobService, id string) *dto.JobResponse {
	t.Helper()
	var status *dto.JobResponse
	require.Eventually(t, func() bool {
		current, err := svc.Status(id)
		if err != nil {
			return false
		}
		status = current
		return current.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return status
}

func TestGenerationJobServiceStreamsProgress(t *testing.T) {
	svc := newJobService(t)

	job, err := svc.Submit(context.Background(), departmentRequest())
	require.NoError(t, err)
	assert.Equal(t, dto.JobStatusQueued, job.Status)

	updates, unsubscribe, err := svc.Subscribe(job.ID)
	require.NoError(t, err)
	defer unsubscribe()

	var last dto.JobProgress
	timeout := time.After(10 * time.Second)
	for open := true; open; {
		select {
		case p, ok := <-updates:
			if ok {
				last = p
			}
			open = ok
		case <-timeout:
			t.Fatal("progress stream did not close")
		}
	}

	status, err := svc.Status(job.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.JobStatusSucceeded, status.Status)
	require.NotNil(t, status.Result)
	assert.NotEmpty(t, status.Result.Alternatives)
	assert.NotNil(t, status.StartedAt)
	assert.NotNil(t, status.FinishedAt)
	require.NotNil(t, status.Progress)
	assert.Equal(t, 18, status.Progress.Total)
	assert.Equal(t, 6, status.Progress.Runs)
	assert.LessOrEqual(t, last.Runs, status.Progress.Runs)

	_, err = svc.Cancel(job.ID)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	closed, _, err := svc.Subscribe(job.ID)
	require.NoError(t, err)
	_, ok := <-closed
	assert.False(t, ok)
}

func TestGenerationJobServiceFailure(t *testing.T) {
	svc := newJobService(t)
	req := singleBatchRequest()
	req.Faculty[0].MaxHoursPerWeek = 1

	job, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	status := waitTerminal(t, svc, job.ID)
	assert.Equal(t, dto.JobStatusFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.Equal(t, appErrors.ErrInfeasibleInput.Code, status.Error.Code)
}

func TestGenerationJobServiceCancelledBeforeStart(t *testing.T) {
	svc := NewGenerationJobService(newGeneratorFixture(t).service, NewMetricsService(), nil, zap.NewNop(), GenerationJobConfig{})
	svc.jobs["j1"] = &generationJob{
		state:       dto.JobResponse{ID: "j1", Status: dto.JobStatusQueued},
		request:     departmentRequest(),
		subscribers: make(map[chan dto.JobProgress]struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.handle(ctx, jobs.Job{ID: "j1"}))
	status, err := svc.Status("j1")
	require.NoError(t, err)
	assert.Equal(t, dto.JobStatusCancelled, status.Status)
	assert.Equal(t, appErrors.ErrCancelled.Code, status.Error.Code)
	assert.Nil(t, status.Result)
}

func TestGenerationJobServiceStopCancelsQueuedJobs(t *testing.T) {
	svc := NewGenerationJobService(newGeneratorFixture(t).service, NewMetricsService(), nil, zap.NewNop(), GenerationJobConfig{Workers: 1, Buffer: 4})
	busy := make(chan struct{})
	svc.queue = jobs.NewQueue("test", func(ctx context.Context, job jobs.Job) error {
		close(busy)
		<-ctx.Done()
		return svc.handle(ctx, job)
	}, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	svc.Start(context.Background())

	first, err := svc.Submit(context.Background(), departmentRequest())
	require.NoError(t, err)
	<-busy
	second, err := svc.Submit(context.Background(), departmentRequest())
	require.NoError(t, err)
	third, err := svc.Submit(context.Background(), singleBatchRequest())
	require.NoError(t, err)

	svc.Stop()

	for _, id := range []string{first.ID, second.ID, third.ID} {
		status, err := svc.Status(id)
		require.NoError(t, err)
		assert.Equal(t, dto.JobStatusCancelled, status.Status, "job %s", id)
		require.NotNil(t, status.Error)
		assert.Equal(t, appErrors.ErrCancelled.Code, status.Error.Code)
		assert.NotNil(t, status.FinishedAt)
		assert.Nil(t, status.Result)
	}

	_, err = svc.Submit(context.Background(), departmentRequest())
	assert.Error(t, err)
}

func TestGenerationJobServiceValidation(t *testing.T) {
	svc := newJobService(t)

	_, err := svc.Submit(context.Background(), dto.GenerateTimetableRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Status("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = svc.Subscribe("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Cancel("missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestGenerationJobServicePurgesFinishedJobs(t *testing.T) {
	svc := newJobService(t)
	old := time.Now().UTC().Add(-2 * time.Hour)
	svc.jobs["old"] = &generationJob{state: dto.JobResponse{ID: "old", Status: dto.JobStatusSucceeded, FinishedAt: &old}}

	_, err := svc.Submit(context.Background(), singleBatchRequest())
	require.NoError(t, err)

	_, err = svc.Status("old")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
