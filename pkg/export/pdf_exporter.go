package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 277.0
	pdfFirstCol   = 30.0
	pdfLineHeight = 4.5
)

// PDFExporter renders datasets as landscape tables, one page per section.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with the dataset title on every page.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if data.empty() {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, section := range data.Sections {
		if len(section.Headers) == 0 {
			continue
		}
		pdf.AddPage()
		if data.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 8, tr(strings.ToUpper(data.Title)), "", 1, "C", false, 0, "")
		}
		if data.Subtitle != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.CellFormat(0, 5, tr(data.Subtitle), "", 1, "C", false, 0, "")
		}
		if section.Title != "" {
			pdf.Ln(2)
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 7, tr(section.Title), "", 1, "L", false, 0, "")
		}
		widths := columnWidths(len(section.Headers))

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, header := range section.Headers {
			pdf.CellFormat(widths[i], 7, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range section.Rows {
			height := rowHeight(pdf, row, widths)
			x, y := pdf.GetXY()
			for i := range section.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.Rect(x, y, widths[i], height, "D")
				pdf.MultiCell(widths[i], pdfLineHeight, tr(value), "", "L", false)
				x += widths[i]
				pdf.SetXY(x, y)
			}
			pdf.SetXY(10, y+height)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(n int) []float64 {
	widths := make([]float64, n)
	if n == 1 {
		widths[0] = pdfPageWidth
		return widths
	}
	widths[0] = pdfFirstCol
	rest := (pdfPageWidth - pdfFirstCol) / float64(n-1)
	for i := 1; i < n; i++ {
		widths[i] = rest
	}
	return widths
}

func rowHeight(pdf *gofpdf.Fpdf, row []string, widths []float64) float64 {
	lines := 1
	for i, value := range row {
		if i >= len(widths) || value == "" {
			continue
		}
		if n := len(pdf.SplitLines([]byte(value), widths[i]-2)); n > lines {
			lines = n
		}
	}
	return float64(lines)*pdfLineHeight + 1
}
