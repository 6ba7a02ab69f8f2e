package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type generationJobs interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.JobResponse, error)
	Status(id string) (*dto.JobResponse, error)
	Subscribe(id string) (<-chan dto.JobProgress, func(), error)
	Cancel(id string) (*dto.JobResponse, error)
}

// JobHandler exposes background generation jobs and their progress stream.
type JobHandler struct {
	jobs generationJobs
}

// NewJobHandler constructs the handler.
func NewJobHandler(jobs *service.GenerationJobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Create godoc
// @Summary Queue a background generation
// @Tags Jobs
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Master data snapshot"
// @Success 202 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job, strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+job.ID)
}

// Get godoc
// @Summary Get job status and, once finished, its result
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Cancel godoc
// @Summary Cancel a queued or running job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/jobs/{id} [delete]
func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Events godoc
// @Summary Stream job progress as server-sent events
// @Description Emits "progress" events while the job runs and one final event named after the terminal status (succeeded, failed or cancelled) carrying the job.
// @Tags Jobs
// @Produce text/event-stream
// @Param id path string true "Job ID"
// @Success 200
// @Router /timetables/jobs/{id}/events [get]
func (h *JobHandler) Events(c *gin.Context) {
	id := c.Param("id")
	updates, unsubscribe, err := h.jobs.Subscribe(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case progress, ok := <-updates:
			if !ok {
				if job, err := h.jobs.Status(id); err == nil {
					c.SSEvent(job.Status, job)
				}
				return false
			}
			c.SSEvent("progress", progress)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
