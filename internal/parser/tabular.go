package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// EmptyCell stands in for a blank value in space-aligned text, where a
// missing value would otherwise merge two columns.
const EmptyCell = "-"

var wideGap = regexp.MustCompile(`\s{2,}`)

type splitter func(string) []string

// chooseSplitter prefers tabs, then runs of two or more spaces, then any
// whitespace.
func chooseSplitter(line string) splitter {
	switch {
	case strings.Contains(line, "\t"):
		return func(s string) []string {
			parts := strings.Split(strings.TrimRight(s, "\r"), "\t")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	case wideGap.MatchString(strings.TrimSpace(line)):
		return func(s string) []string {
			return wideGap.Split(strings.TrimSpace(s), -1)
		}
	default:
		return strings.Fields
	}
}

func parseTabular(data []byte) (*manifest.Document, error) {
	lines := strings.Split(string(data), "\n")

	doc := &manifest.Document{}
	var split splitter
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if doc.Headers == nil {
			s := chooseSplitter(line)
			cols := s(line)
			if len(cols) > 3 {
				split = s
				doc.Headers = uniqueHeaders(cols)
			}
			continue
		}

		cols := split(line)
		if len(cols) != len(doc.Headers) {
			continue
		}
		raw := make(map[string]string, len(cols))
		for j, h := range doc.Headers {
			v := cols[j]
			if v == EmptyCell {
				v = ""
			}
			raw[h] = v
		}
		doc.Records = append(doc.Records, manifest.NewRecord(i+1, raw))
	}
	return doc, nil
}

// parsePDF extracts the text layer and parses it as tabular text. Files with
// a .pdf name that are really plain text are parsed directly.
func parsePDF(data []byte) (*manifest.Document, error) {
	if !mimetype.Detect(data).Is("application/pdf") {
		return parseTabular(prepareText(data))
	}

	text, err := extractPDFText(data)
	if err != nil {
		return nil, err
	}
	return parseTabular(text)
}

func extractPDFText(data []byte) ([]byte, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	return text, nil
}
