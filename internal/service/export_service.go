package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered document ready to be sent or written.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders alternatives as one weekly grid per batch.
type ExportService struct {
	alternatives *TimetableGeneratorService
	csv          csvRenderer
	pdf          pdfRenderer
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(alternatives *TimetableGeneratorService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		alternatives: alternatives,
		csv:          csv,
		pdf:          pdf,
		validator:    validator.New(),
		logger:       logger,
	}
}

// Export renders the alternative in the requested format, CSV by default.
func (s *ExportService) Export(ctx context.Context, alternativeID string, query dto.ExportQuery) (*ExportResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	item, err := s.alternatives.lookup(alternativeID)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(query.Format)
	if format == "" {
		format = FormatCSV
	}
	dataset := BuildDataset(item.problem, item.alt)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case FormatPDF:
		payload, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Debug("timetable exported", zap.String("alternative_id", alternativeID), zap.String("format", format), zap.Int("bytes", len(payload)))
	return &ExportResult{
		Filename:    exportFilename(item.alt, format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

// BuildDataset lays out an alternative as one batch × day × period table per batch.
// Multi-period sessions fill every period they cover.
func BuildDataset(problem *scheduler.Problem, alt *models.Alternative) export.Dataset {
	grid := problem.Grid
	headers := make([]string, 0, len(grid.Days)+1)
	headers = append(headers, "Period")
	for _, day := range grid.Days {
		headers = append(headers, models.DayName(day))
	}

	cells := make(map[models.BatchID][][]string)
	for _, session := range problem.Sessions() {
		pl, ok := alt.Assignment[session.ID]
		if !ok {
			continue
		}
		table, ok := cells[session.BatchID]
		if !ok {
			table = make([][]string, grid.PeriodsPerDay)
			for i := range table {
				table[i] = make([]string, len(grid.Days))
			}
			cells[session.BatchID] = table
		}
		col := grid.DayIndex(pl.Day)
		if col < 0 {
			continue
		}
		label := fmt.Sprintf("%s\n%s @ %s", session.SubjectID, session.FacultyID, pl.RoomID)
		for p := pl.Period; p < pl.Period+session.Duration && p <= grid.PeriodsPerDay; p++ {
			table[p-1][col] = label
		}
	}

	batches := make([]string, 0, len(cells))
	for id := range cells {
		batches = append(batches, string(id))
	}
	sort.Strings(batches)

	dataset := export.Dataset{
		Title:    "Timetable",
		Subtitle: fmt.Sprintf("%s | score %.2f | efficiency %.2f%%", alt.Name, alt.Score, alt.Metrics.Efficiency),
	}
	for _, batch := range batches {
		table := cells[models.BatchID(batch)]
		rows := make([][]string, 0, grid.PeriodsPerDay+len(grid.Breaks))
		for period := 1; period <= grid.PeriodsPerDay; period++ {
			row := append([]string{periodLabel(grid, period)}, table[period-1]...)
			rows = append(rows, row)
			if grid.BreakAfter(period) && period < grid.PeriodsPerDay {
				rows = append(rows, []string{"Break"})
			}
		}
		dataset.Sections = append(dataset.Sections, export.Section{
			Title:   "Batch " + batch,
			Headers: headers,
			Rows:    rows,
		})
	}
	return dataset
}

func periodLabel(grid models.Grid, period int) string {
	if period <= len(grid.Periods) && grid.Periods[period-1].Start != "" {
		return fmt.Sprintf("%d (%s-%s)", period, grid.Periods[period-1].Start, grid.Periods[period-1].End)
	}
	return fmt.Sprintf("%d", period)
}

func exportFilename(alt *models.Alternative, format string) string {
	name := strings.ToLower(strings.ReplaceAll(alt.Name, " ", "-"))
	if name == "" {
		name = "timetable"
	}
	id := alt.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s.%s", name, id, format)
}
