package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// candidate separators; comma first so it wins ties
var delimiters = []rune{',', '\t', ';', '|'}

// SniffDelimiter picks the separator that occurs most often in the first line.
func SniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := delimiters[0], -1
	for _, d := range delimiters {
		n := bytes.Count(line, []byte(string(d)))
		if n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func parseDelimited(data []byte) (*manifest.Document, error) {
	delim := SniffDelimiter(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	doc := &manifest.Document{Delimiter: delim}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read delimited row: %w", err)
		}
		if isEmptyRow(row) {
			continue
		}
		line, _ := r.FieldPos(0)

		if doc.Headers == nil {
			doc.Headers = uniqueHeaders(row)
			continue
		}

		raw := make(map[string]string, len(doc.Headers))
		for i, h := range doc.Headers {
			if i < len(row) {
				raw[h] = strings.TrimSpace(row[i])
			} else {
				raw[h] = ""
			}
		}
		doc.Records = append(doc.Records, manifest.NewRecord(line, raw))
	}
	return doc, nil
}

// uniqueHeaders trims header cells and names blank or repeated ones so each
// column has its own key.
func uniqueHeaders(row []string) []string {
	headers := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, h := range row {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		headers[i] = h
	}
	return headers
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
