// Package mapping binds a document's own header or tag names to the
// canonical manifest fields.
//
// Pattern tables are immutable once built. A document is mapped by walking the
// fields in priority order and, for each field, binding the first header (in
// document order) that matches any of the field's patterns. A bound header is
// consumed and cannot be bound to a later field.
package mapping

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// FieldPatterns is the ordered pattern list for one canonical field.
type FieldPatterns struct {
	Field    manifest.Field
	Patterns []*regexp.Regexp
}

// Patterns is an ordered, read-only pattern table.
type Patterns struct {
	fields []FieldPatterns
}

// defaultTable lists fields most specific first so that, for example, a
// "Duty Rate" header is claimed by tariff_rate before duty sees it.
var defaultTable = []struct {
	field    manifest.Field
	patterns []string
}{
	{manifest.FieldManifestID, []string{
		`\b(manifest|shipment|consignment|entry)\b.*\b(id|no|nr|number|num|ref|reference)\b`,
		`^(manifest|shipment|consignment|bol|bill of lading|awb|air waybill|waybill)$`,
		`manifestid`, `shipmentid`, `manifestno`,
	}},
	{manifest.FieldHSCode, []string{
		`\bhs\b`, `\bhts\b`, `hscode`, `htscode`, `harmoni[sz]ed`,
		`\btariff (code|number|no|heading)\b`, `\bcommodity code\b`,
	}},
	{manifest.FieldTariffRate, []string{
		`\b(tariff|duty|customs) rate\b`, `^rate( pct| percent| %)?$`, `\brate ?%`, `tariffrate`, `dutyrate`,
	}},
	{manifest.FieldDuty, []string{
		`\bduty\b`, `^duty`, `\bduties\b`, `\bcustoms (charge|fee|amount)\b`,
	}},
	{manifest.FieldUnitValue, []string{
		`\bunit (value|price|cost)\b`, `\bprice\b`, `\bper unit\b`, `unitvalue`, `unitprice`,
	}},
	{manifest.FieldWeight, []string{
		`weight`, `\bwt\b`, `\bkgs?\b`, `\bgross\b`, `\bnet mass\b`,
	}},
	{manifest.FieldQuantity, []string{
		`quantit`, `\bqty\b`, `\bpcs\b`, `\bpieces\b`, `^count$`, `^no of (units|pieces|packages)$`,
	}},
	{manifest.FieldUOM, []string{
		`\buom\b`, `\bunit of measure`, `\bmeasure\b`, `^units?$`,
	}},
	{manifest.FieldCurrency, []string{
		`currency`, `\bccy\b`, `^cur$`,
	}},
	{manifest.FieldIncoterm, []string{
		`incoterm`, `\bterms? of (sale|delivery)\b`, `\bdelivery terms?\b`, `\btrade terms?\b`,
	}},
	{manifest.FieldDate, []string{
		`date`, `^dt$`, `\beta\b`, `\betd\b`,
	}},
	{manifest.FieldOrigin, []string{
		`origin`, `\bcoo\b`, `\bcountry of export\b`, `\bexport(er)? country\b`, `\bship from\b`,
		`\bport of loading\b`, `^from$`,
	}},
	{manifest.FieldDestination, []string{
		`destination`, `\bdest\b`, `\bcountry of import\b`, `\bimport(er)? country\b`, `\bship to\b`,
		`\bport of discharge\b`, `\bconsignee country\b`, `^to$`,
	}},
	{manifest.FieldDescription, []string{
		`desc`, `^(goods|commodity|product|item|article|cargo|merchandise)( name| details)?$`,
		`\b(product|item|goods) name\b`,
	}},
	{manifest.FieldTotalValue, []string{
		`\btotal\b`, `\bvalue\b`, `\bamount\b`, `\bdeclared\b`, `\binvoice\b`, `\bfob\b`, `\bcif\b`, `totalvalue`,
	}},
}

var defaultPatterns = mustCompile()

func mustCompile() *Patterns {
	p := &Patterns{}
	for _, entry := range defaultTable {
		fp := FieldPatterns{Field: entry.field}
		for _, expr := range entry.patterns {
			fp.Patterns = append(fp.Patterns, regexp.MustCompile(expr))
		}
		p.fields = append(p.fields, fp)
	}
	return p
}

// DefaultPatterns returns the built-in table. It is shared and read-only.
func DefaultPatterns() *Patterns {
	return defaultPatterns
}

// NewPatterns builds a table from an ordered list. The slices are copied.
func NewPatterns(fields []FieldPatterns) *Patterns {
	p := &Patterns{fields: make([]FieldPatterns, len(fields))}
	for i, fp := range fields {
		p.fields[i] = FieldPatterns{
			Field:    fp.Field,
			Patterns: append([]*regexp.Regexp(nil), fp.Patterns...),
		}
	}
	return p
}

// Fields returns the field order of the table.
func (p *Patterns) Fields() []manifest.Field {
	out := make([]manifest.Field, len(p.fields))
	for i, fp := range p.fields {
		out[i] = fp.Field
	}
	return out
}

type yamlFile struct {
	Fields []struct {
		Field    string   `yaml:"field"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"fields"`
}

// ParsePatterns reads a YAML pattern table:
//
//	fields:
//	  - field: hs_code
//	    patterns: ['\bhs\b', 'tariff code']
//
// Order in the file is the binding priority.
func ParsePatterns(data []byte) (*Patterns, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}
	if len(f.Fields) == 0 {
		return nil, fmt.Errorf("parse patterns: no fields defined")
	}

	seen := make(map[string]bool, len(f.Fields))
	fields := make([]FieldPatterns, 0, len(f.Fields))
	for _, entry := range f.Fields {
		if !manifest.IsField(entry.Field) {
			return nil, fmt.Errorf("parse patterns: unknown field %q", entry.Field)
		}
		if seen[entry.Field] {
			return nil, fmt.Errorf("parse patterns: field %q listed twice", entry.Field)
		}
		seen[entry.Field] = true

		fp := FieldPatterns{Field: manifest.Field(entry.Field)}
		for _, expr := range entry.Patterns {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("parse patterns: field %s: %w", entry.Field, err)
			}
			fp.Patterns = append(fp.Patterns, re)
		}
		fields = append(fields, fp)
	}
	return &Patterns{fields: fields}, nil
}

// LoadPatterns reads a YAML pattern table from disk. An empty path returns
// the defaults.
func LoadPatterns(path string) (*Patterns, error) {
	if path == "" {
		return DefaultPatterns(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	return ParsePatterns(data)
}
