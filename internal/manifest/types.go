// Package manifest defines the canonical shapes shared by every stage of the
// compliance pipeline: documents, records, canonical fields and issues.
package manifest

import (
	"path/filepath"
	"strings"
)

// Field is a canonical manifest field name.
type Field string

const (
	FieldManifestID  Field = "manifest_id"
	FieldOrigin      Field = "origin"
	FieldDestination Field = "destination"
	FieldHSCode      Field = "hs_code"
	FieldDescription Field = "description"
	FieldQuantity    Field = "quantity"
	FieldUOM         Field = "uom"
	FieldUnitValue   Field = "unit_value"
	FieldTotalValue  Field = "total_value"
	FieldWeight      Field = "weight"
	FieldCurrency    Field = "currency"
	FieldIncoterm    Field = "incoterm"
	FieldDuty        Field = "duty"
	FieldDate        Field = "date"
	FieldTariffRate  Field = "tariff_rate"
)

// Fields lists every canonical field in a stable order.
var Fields = []Field{
	FieldManifestID, FieldOrigin, FieldDestination, FieldHSCode, FieldDescription,
	FieldQuantity, FieldUOM, FieldUnitValue, FieldTotalValue, FieldWeight,
	FieldCurrency, FieldIncoterm, FieldDuty, FieldDate, FieldTariffRate,
}

// IsField reports whether name is a canonical field.
func IsField(name string) bool {
	for _, f := range Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// ShipmentTotalKey is the raw key under which a document-level total is
// copied onto records. It is never bound to a canonical field.
const ShipmentTotalKey = "shipment_total"

// Kind is the structural kind of a source document.
type Kind string

const (
	KindDelimited Kind = "delimited"
	KindTagged    Kind = "tagged"
	KindSegment   Kind = "segment"
	KindTabular   Kind = "tabular"
	KindArray     Kind = "array"
	KindUnknown   Kind = "unknown"
)

// Format names a concrete output format; a kind can serialize to several.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatEDI  Format = "edi"
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
	FormatJSON Format = "json"
)

// MimeType returns the content type for the format.
func (f Format) MimeType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXML:
		return "application/xml"
	case FormatEDI:
		return "application/edi-x12"
	case FormatText:
		return "text/plain"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// ParseFormat maps user input such as "CSV" or ".xml" to a Format. Unknown
// names return FormatJSON and false.
func ParseFormat(s string) (Format, bool) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv", "tsv", "psv", "dsv", "delimited":
		return FormatCSV, true
	case "xml", "tagged":
		return FormatXML, true
	case "edi", "x12", "edifact", "segment":
		return FormatEDI, true
	case "txt", "text", "prn", "tabular":
		return FormatText, true
	case "pdf":
		return FormatPDF, true
	case "json", "array":
		return FormatJSON, true
	default:
		return FormatJSON, false
	}
}

// Document is a parsed manifest.
type Document struct {
	FileName string
	Kind     Kind
	Format   Format

	// Delimiter is set for delimited input only.
	Delimiter rune

	// Headers preserves source column order.
	Headers []string
	Records []Record

	// Meta holds document-level values (tagged input) copied onto every record.
	Meta map[string]string
}

// BaseName returns the file name without extension.
func (d *Document) BaseName() string {
	name := filepath.Base(d.FileName)
	if name == "." || name == "/" || name == "" {
		return "manifest"
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// HasHeader reports whether the document declares header h.
func (d *Document) HasHeader(h string) bool {
	for _, existing := range d.Headers {
		if existing == h {
			return true
		}
	}
	return false
}

// Record is one manifest line item.
//
// Row is a 1-based locator into the source. Raw holds values exactly as
// parsed, keyed by source header; Fields is the canonical view. Records are
// values: use With and WithField to derive modified copies.
type Record struct {
	Row    int
	Raw    map[string]string
	Fields map[Field]string
}

// NewRecord builds a record from parsed values.
func NewRecord(row int, raw map[string]string) Record {
	if raw == nil {
		raw = map[string]string{}
	}
	return Record{Row: row, Raw: raw, Fields: map[Field]string{}}
}

// Get returns the canonical value of f, trimmed.
func (r Record) Get(f Field) string {
	return strings.TrimSpace(r.Fields[f])
}

// Has reports whether the canonical view carries f at all (even if blank).
func (r Record) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := Record{
		Row:    r.Row,
		Raw:    make(map[string]string, len(r.Raw)),
		Fields: make(map[Field]string, len(r.Fields)),
	}
	for k, v := range r.Raw {
		out.Raw[k] = v
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// With returns a copy whose source column header is set to value. When the
// column is bound to a canonical field, pass it as f so both views agree;
// pass "" otherwise.
func (r Record) With(header string, f Field, value string) Record {
	out := r.Clone()
	if header != "" {
		out.Raw[header] = value
	}
	if f != "" {
		out.Fields[f] = value
	}
	return out
}

// WithField returns a copy with the canonical field set. Raw is untouched.
func (r Record) WithField(f Field, value string) Record {
	return r.With("", f, value)
}
