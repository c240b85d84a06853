package mapping

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// Column locates the source of one canonical field.
type Column struct {
	Header string `json:"header"`
	Index  int    `json:"index"`
}

// ColumnMap binds canonical fields to source columns. Missing lists table
// fields with no matching header, in priority order.
type ColumnMap struct {
	Columns map[manifest.Field]Column `json:"columns"`
	Missing []manifest.Field          `json:"missing,omitempty"`
}

// Has reports whether f is bound.
func (m ColumnMap) Has(f manifest.Field) bool {
	_, ok := m.Columns[f]
	return ok
}

// Header returns the source header bound to f, or "".
func (m ColumnMap) Header(f manifest.Field) string {
	return m.Columns[f].Header
}

var separatorRun = regexp.MustCompile(`[\s_\-./\\:#]+`)

var shipmentTotal = NormalizeHeader(manifest.ShipmentTotalKey)

// NormalizeHeader lowercases h and collapses separator runs to one space.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.TrimSpace(separatorRun.ReplaceAllString(h, " "))
}

// Map binds headers to canonical fields. It is pure: the same headers always
// produce an equal ColumnMap.
func (p *Patterns) Map(headers []string) ColumnMap {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	cm := ColumnMap{Columns: make(map[manifest.Field]Column)}
	consumed := make([]bool, len(headers))
	for i, h := range normalized {
		// document-level totals never stand in for a line value
		if h == shipmentTotal {
			consumed[i] = true
		}
	}

	for _, fp := range p.fields {
		bound := false
		for i, h := range normalized {
			if consumed[i] || h == "" {
				continue
			}
			if matchAny(fp.Patterns, h) {
				cm.Columns[fp.Field] = Column{Header: headers[i], Index: i}
				consumed[i] = true
				bound = true
				break
			}
		}
		if !bound {
			cm.Missing = append(cm.Missing, fp.Field)
		}
	}
	return cm
}

func matchAny(patterns []*regexp.Regexp, h string) bool {
	for _, re := range patterns {
		if re.MatchString(h) {
			return true
		}
	}
	return false
}

// Apply returns a copy of doc whose records carry the canonical view for cm.
// The input document is not modified.
func Apply(doc *manifest.Document, cm ColumnMap) *manifest.Document {
	out := *doc
	out.Records = make([]manifest.Record, len(doc.Records))
	for i, rec := range doc.Records {
		mapped := rec.Clone()
		mapped.Fields = make(map[manifest.Field]string, len(cm.Columns))
		for f, col := range cm.Columns {
			mapped.Fields[f] = rec.Raw[col.Header]
		}
		out.Records[i] = mapped
	}
	return &out
}

// MapDocument maps doc's headers and applies the result.
func (p *Patterns) MapDocument(doc *manifest.Document) (*manifest.Document, ColumnMap) {
	cm := p.Map(doc.Headers)
	return Apply(doc, cm), cm
}
