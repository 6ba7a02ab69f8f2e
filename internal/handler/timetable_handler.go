package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Alternative(id string) (*models.Alternative, error)
	Save(ctx context.Context, alternativeID string, req dto.SaveAlternativeRequest) (*models.TimetableRecord, error)
	ListSaved(ctx context.Context, query dto.SavedTimetableQuery) ([]models.TimetableRecord, *models.Pagination, error)
	GetSaved(ctx context.Context, id string) (*dto.SavedTimetableResponse, error)
	DeleteSaved(ctx context.Context, id string) error
	Publish(ctx context.Context, id string) (*models.TimetableRecord, error)
}

type alternativeExporter interface {
	Export(ctx context.Context, alternativeID string, query dto.ExportQuery) (*service.ExportResult, error)
}

// TimetableHandler exposes generation, alternative and persistence endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	exporter  alternativeExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator *service.TimetableGeneratorService, exporter *service.ExportService) *TimetableHandler {
	return &TimetableHandler{generator: generator, exporter: exporter}
}

// Generate godoc
// @Summary Generate ranked timetable alternatives
// @Description Runs seeded searches over the snapshot and returns up to N mutually distinct, hard-valid alternatives. Identical inputs and seed return identical alternatives.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Master data snapshot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	middleware.SetMeta(c, "alternatives", len(result.Alternatives))
	response.JSON(c, http.StatusOK, result, nil, middleware.Meta(c))
}

// Alternative godoc
// @Summary Get a generated alternative
// @Tags Timetables
// @Produce json
// @Param id path string true "Alternative ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/alternatives/{id} [get]
func (h *TimetableHandler) Alternative(c *gin.Context) {
	alt, err := h.generator.Alternative(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alt, nil)
}

// Export godoc
// @Summary Export an alternative as a weekly grid per batch
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Alternative ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /timetables/alternatives/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	out, err := h.exporter.Export(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

// Save godoc
// @Summary Persist an alternative and its placements
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Alternative ID"
// @Param payload body dto.SaveAlternativeRequest false "Save options"
// @Success 201 {object} response.Envelope
// @Router /timetables/alternatives/{id}/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveAlternativeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
			return
		}
	}
	record, err := h.generator.Save(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListSaved godoc
// @Summary List persisted timetables
// @Tags Timetables
// @Produce json
// @Param fingerprint query string false "Input fingerprint"
// @Param status query string false "DRAFT, PUBLISHED or ARCHIVED"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables/saved [get]
func (h *TimetableHandler) ListSaved(c *gin.Context) {
	var query dto.SavedTimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable filter"))
		return
	}
	list, pagination, err := h.generator.ListSaved(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, pagination)
}

// GetSaved godoc
// @Summary Get a persisted timetable with its placements
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/saved/{id} [get]
func (h *TimetableHandler) GetSaved(c *gin.Context) {
	saved, err := h.generator.GetSaved(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved, nil)
}

// Publish godoc
// @Summary Publish a stored timetable
// @Description Archives the version previously published for the same inputs.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/saved/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	record, err := h.generator.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// DeleteSaved godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /timetables/saved/{id} [delete]
func (h *TimetableHandler) DeleteSaved(c *gin.Context) {
	if err := h.generator.DeleteSaved(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
