// Package correct applies deterministic fixes to a manifest and writes it
// back out, in its own format or a requested one.
//
// Fixes are limited to what can be derived without judgment: generated
// manifest IDs, every autofix the validation rules propose (HS code padding,
// duty computed from value and rate, ISO country codes, canonical dates), and
// removal of duplicate lines. Records that cannot be repaired are written as
// they are.
package correct

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/manifestcheck/internal/dedupe"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/normalize"
	"github.com/JonMunkholm/manifestcheck/internal/rules"
)

// Options controls correction.
type Options struct {
	// Format overrides the output format. Empty keeps the input format.
	Format manifest.Format

	// NewID generates manifest IDs. Defaults to random UUIDs.
	NewID func() string

	// Rules proposes the autofixes to apply. Defaults to rules.New with
	// default options.
	Rules *rules.Engine
}

// Output is a regenerated document.
type Output struct {
	Content           []byte             `json:"-"`
	MimeType          string             `json:"mimeType"`
	FileName          string             `json:"fileName"`
	Format            manifest.Format    `json:"format"`
	IssuesFixed       int                `json:"issuesFixed"`
	DuplicatesRemoved int                `json:"duplicatesRemoved"`
	Document          *manifest.Document `json:"-"`
}

// Correct fixes doc and serializes the result. cols must be the column map
// the document was mapped with.
func Correct(doc *manifest.Document, cols mapping.ColumnMap, opts Options) (*Output, error) {
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	engine := opts.Rules
	if engine == nil {
		engine = rules.New(rules.Options{})
	}

	fixed := *doc
	fixed.Headers = append([]string(nil), doc.Headers...)
	fixed.Records = make([]manifest.Record, 0, len(doc.Records))

	idHeader := headerFor(&fixed, cols, manifest.FieldManifestID)
	// the duty rule only runs when a duty column exists; without one, duty
	// is filled into a new column here
	var dutyHeader string
	canFillDuty := cols.Has(manifest.FieldTotalValue) && cols.Has(manifest.FieldTariffRate) &&
		!cols.Has(manifest.FieldDuty)

	issuesFixed := 0
	for _, rec := range doc.Records {
		if rec.Get(manifest.FieldManifestID) == "" {
			rec = rec.With(idHeader, manifest.FieldManifestID, newID())
			issuesFixed++
		}

		for _, is := range engine.ValidateRecord(rec, cols) {
			if is.Autofix == nil || !cols.Has(is.Field) {
				continue
			}
			rec = rec.With(cols.Header(is.Field), is.Field, *is.Autofix)
			issuesFixed++
		}

		if canFillDuty {
			if duty, ok := missingDuty(rec); ok {
				if dutyHeader == "" {
					dutyHeader = addHeader(&fixed, string(manifest.FieldDuty))
				}
				rec = rec.With(dutyHeader, manifest.FieldDuty, duty)
				issuesFixed++
			}
		}

		fixed.Records = append(fixed.Records, rec)
	}

	survivors, removed := dedupe.Unique(fixed.Records)
	fixed.Records = survivors

	format := opts.Format
	if format == "" {
		format = doc.Format
	}
	if _, known := manifest.ParseFormat(string(format)); !known {
		format = manifest.FormatJSON
	}

	content, err := Serialize(&fixed, format)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", format, err)
	}

	return &Output{
		Content:           content,
		MimeType:          format.MimeType(),
		FileName:          correctedName(doc, format),
		Format:            format,
		IssuesFixed:       issuesFixed,
		DuplicatesRemoved: removed,
		Document:          &fixed,
	}, nil
}

// missingDuty returns the duty to fill when value and rate are known, value
// is non-zero and duty is blank or zero.
func missingDuty(rec manifest.Record) (string, bool) {
	value, okV := normalize.Number(rec.Get(manifest.FieldTotalValue))
	rate, okR := normalize.Number(rec.Get(manifest.FieldTariffRate))
	if !okV || !okR || value.IsZero() {
		return "", false
	}
	if duty, ok := normalize.Number(rec.Get(manifest.FieldDuty)); ok && !duty.IsZero() {
		return "", false
	}
	return normalize.Money(rules.ExpectedDuty(value, rate)), true
}

// headerFor returns the column bound to f, adding a column named after the
// field when there is none.
func headerFor(doc *manifest.Document, cols mapping.ColumnMap, f manifest.Field) string {
	if h := cols.Header(f); h != "" {
		return h
	}
	return addHeader(doc, string(f))
}

func addHeader(doc *manifest.Document, name string) string {
	h := name
	for i := 2; doc.HasHeader(h); i++ {
		h = fmt.Sprintf("%s_%d", name, i)
	}
	doc.Headers = append(doc.Headers, h)
	return h
}

// correctedName inserts _corrected before the extension. The extension
// follows the output format unless the format is unchanged.
func correctedName(doc *manifest.Document, format manifest.Format) string {
	ext := filepath.Ext(doc.FileName)
	if ext == "" || format != doc.Format {
		ext = "." + string(format)
	}
	return doc.BaseName() + "_corrected" + strings.ToLower(ext)
}
