package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:    "Timetable",
		Subtitle: "Optimal Solution",
		Sections: []Section{
			{
				Title:   "Batch B1",
				Headers: []string{"Period", "MONDAY", "TUESDAY"},
				Rows: [][]string{
					{"1 (08:00-08:45)", "ALG\nF1 @ C1", ""},
					{"2", "", "DB\nF2 @ C2"},
				},
			},
			{
				Title:   "Batch B2",
				Headers: []string{"Period", "MONDAY", "TUESDAY"},
				Rows:    [][]string{{"1", "", "ALG"}},
			},
		},
	}
}

func TestCSVRenderWritesSections(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(out))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Batch B1"}, records[0])
	assert.Equal(t, []string{"Period", "MONDAY", "TUESDAY"}, records[1])
	assert.Equal(t, "ALG\nF1 @ C1", records[2][1])
	assert.Equal(t, []string{"Batch B2"}, records[4])
	assert.Equal(t, []string{"1", "", "ALG"}, records[6])
}

func TestCSVRenderPadsShortRows(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{Sections: []Section{{Headers: []string{"a", "b"}, Rows: [][]string{{"x"}}}}})
	require.NoError(t, err)
	assert.Equal(t, "a,b\nx,\n", string(out))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{Sections: []Section{{Title: "empty"}}})
	assert.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
