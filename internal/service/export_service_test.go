package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

func labRequest() dto.GenerateTimetableRequest {
	req := singleBatchRequest()
	req.Grid.Breaks = []int{4}
	req.Rooms = []models.Room{{ID: "L1", Capacity: 40, Type: models.RoomTypeLaboratory}}
	req.Subjects = []models.Subject{{ID: "S1", Type: models.SubjectTypeLab, HoursPerWeek: 2}}
	return req
}

func TestBuildDatasetFillsEveryPeriodOfABlock(t *testing.T) {
	problem, err := scheduler.NewProblem(snapshotFrom(labRequest()))
	require.NoError(t, err)
	alt := &models.Alternative{
		Name:       models.LabelOptimal,
		Assignment: models.Assignment{"B1:S1:1": {Day: 2, Period: 2, RoomID: "L1"}},
	}

	data := BuildDataset(problem, alt)
	require.Len(t, data.Sections, 1)
	section := data.Sections[0]
	assert.Equal(t, "Batch B1", section.Title)
	assert.Equal(t, []string{"Period", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}, section.Headers)
	require.Len(t, section.Rows, 7)

	label := "S1\nF1 @ L1"
	assert.Equal(t, "", section.Rows[0][2])
	assert.Equal(t, label, section.Rows[1][2])
	assert.Equal(t, label, section.Rows[2][2])
	assert.Equal(t, "", section.Rows[3][2])
	assert.Equal(t, []string{"Break"}, section.Rows[4])
	assert.Equal(t, "5", section.Rows[5][0])
}

func TestExportServiceCSV(t *testing.T) {
	gen := newGeneratorFixture(t).service
	resp, err := gen.Generate(context.Background(), departmentRequest())
	require.NoError(t, err)
	alt := resp.Alternatives[0]

	svc := NewExportService(gen, zap.NewNop(), nil, nil)
	out, err := svc.Export(context.Background(), alt.ID, dto.ExportQuery{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", out.ContentType)
	assert.Equal(t, "optimal-solution-"+alt.ID[:8]+".csv", out.Filename)

	reader := csv.NewReader(bytes.NewReader(out.Data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Batch B1"}, records[0])
	assert.Equal(t, "1 (08:00-08:45)", records[2][0])

	filled := 0
	for _, rec := range records {
		if rec[0] == "Period" {
			continue
		}
		for _, cell := range rec[1:] {
			if cell != "" {
				filled++
			}
		}
	}
	// 3 batches × (3 ALG + 2 DB + 2 NETLAB periods)
	assert.Equal(t, 21, filled)
}

func TestExportServicePDF(t *testing.T) {
	gen := newGeneratorFixture(t).service
	resp, err := gen.Generate(context.Background(), singleBatchRequest())
	require.NoError(t, err)

	svc := NewExportService(gen, zap.NewNop(), nil, nil)
	out, err := svc.Export(context.Background(), resp.Alternatives[0].ID, dto.ExportQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Data, []byte("%PDF-")))
}

func TestExportServiceErrors(t *testing.T) {
	gen := newGeneratorFixture(t).service
	svc := NewExportService(gen, zap.NewNop(), nil, nil)

	_, err := svc.Export(context.Background(), "whatever", dto.ExportQuery{Format: "xlsx"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(context.Background(), "missing", dto.ExportQuery{Format: "csv"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
