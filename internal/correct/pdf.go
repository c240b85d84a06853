package correct

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
)

const (
	pdfUsableWidthMM = 277.0 // A4 landscape less 10mm margins
	pdfMaxFontPt     = 8.0
	pdfMinFontPt     = 4.0
	courierEmWidth   = 0.6    // Courier advance width per point size
	mmPerPoint       = 0.3528 // 1pt in mm
)

// writePDF renders the records as a space-aligned monospace table, the same
// layout the tabular parser reads back from extracted text.
func writePDF(doc *manifest.Document) ([]byte, error) {
	lines := alignedLines(doc)

	widest := 0
	for _, l := range lines {
		if n := utf8.RuneCountInString(l); n > widest {
			widest = n
		}
	}
	size := pdfMaxFontPt
	if widest > 0 {
		fit := pdfUsableWidthMM / (float64(widest) * courierEmWidth * mmPerPoint)
		if fit < size {
			size = fit
		}
	}
	if size < pdfMinFontPt {
		size = pdfMinFontPt
	}
	lineHeight := size * mmPerPoint * 1.4

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(doc.BaseName(), true)
	pdf.AddPage()
	pdf.SetFont("Courier", "", size)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, l := range lines {
		pdf.CellFormat(0, lineHeight, tr(l), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// alignedLines pads every column to its widest value and separates columns
// with two spaces. Blank cells are written as parser.EmptyCell so columns
// stay distinct.
func alignedLines(doc *manifest.Document) []string {
	cells := make([][]string, 0, len(doc.Records)+1)
	header := make([]string, len(doc.Headers))
	for i, h := range doc.Headers {
		header[i] = pdfCell(h)
	}
	cells = append(cells, header)
	for _, rec := range doc.Records {
		row := make([]string, len(doc.Headers))
		for i, h := range doc.Headers {
			row[i] = pdfCell(rec.Raw[h])
		}
		cells = append(cells, row)
	}

	widths := make([]int, len(doc.Headers))
	for _, row := range cells {
		for i, c := range row {
			if n := utf8.RuneCountInString(c); n > widths[i] {
				widths[i] = n
			}
		}
	}

	lines := make([]string, len(cells))
	for r, row := range cells {
		var b strings.Builder
		for i, c := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(c)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)))
			}
		}
		lines[r] = b.String()
	}
	return lines
}

// pdfCell collapses inner whitespace runs so a value never looks like a
// column gap.
func pdfCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return parser.EmptyCell
	}
	return s
}

