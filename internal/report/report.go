// Package report assembles the compliance report for a document.
//
// Every number in a report is on one 0-100 scale and is derived from the
// records and the fixed rubric, never from narrative text.
package report

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/manifestcheck/internal/dedupe"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
	"github.com/JonMunkholm/manifestcheck/internal/normalize"
	"github.com/JonMunkholm/manifestcheck/internal/rules"
)

// Feedback is the human-facing summary of a report.
type Feedback struct {
	OverallQuality int      `json:"overall_quality"`
	Summary        string   `json:"summary"`
	NextSteps      []string `json:"next_steps"`
}

// Report is the result of analyzing one document.
type Report struct {
	ID          string            `json:"id"`
	FileName    string            `json:"file_name"`
	Kind        manifest.Kind     `json:"kind"`
	RecordCount int               `json:"record_count"`
	Score       int               `json:"score"`
	Confidence  int               `json:"confidence"`
	Breakdown   map[string]bool   `json:"breakdown"`
	Errors      []manifest.Issue  `json:"errors"`
	Warnings    []string          `json:"warnings"`
	Suggestions []string          `json:"suggestions"`
	Duplicates  []dedupe.Group    `json:"duplicates"`
	Columns     map[string]string `json:"columns"`
	Feedback    Feedback          `json:"feedback"`

	// Records is the normalized view: each raw cell cleaned by its header,
	// numbers as JSON numbers (null when unreadable) and dates as YYYY-MM-DD.
	Records []map[string]any `json:"records"`

	// FallbackUsed is set when a narrative was requested but the
	// rule-derived text had to be kept.
	FallbackUsed bool      `json:"fallback_used"`
	CreatedAt    time.Time `json:"created_at"`
}

// warnFields are the columns whose absence disables a rule or a rubric line.
var warnFields = []manifest.Field{
	manifest.FieldManifestID,
	manifest.FieldHSCode,
	manifest.FieldOrigin,
	manifest.FieldDestination,
	manifest.FieldDescription,
	manifest.FieldQuantity,
	manifest.FieldUOM,
	manifest.FieldTotalValue,
	manifest.FieldTariffRate,
	manifest.FieldDuty,
}

// Build assembles a report from a mapped document, its validation issues
// and its duplicate groups. Duplicate groups are reported as issues too.
func Build(doc *manifest.Document, cols mapping.ColumnMap, issues []manifest.Issue, groups []dedupe.Group) *Report {
	all := make([]manifest.Issue, 0, len(issues)+len(groups))
	all = append(all, issues...)
	all = append(all, dedupe.Issues(groups)...)
	manifest.SortIssues(all)

	r := &Report{
		ID:          uuid.NewString(),
		FileName:    doc.FileName,
		Kind:        doc.Kind,
		RecordCount: len(doc.Records),
		Score:       DocumentScore(doc.Records),
		Confidence:  Confidence(cols),
		Breakdown:   breakdown(doc.Records),
		Errors:      all,
		Warnings:    warnings(cols),
		Suggestions: suggestions(all),
		Duplicates:  groups,
		Columns:     columns(cols),
		Records:     normalizedRecords(doc.Records),
		CreatedAt:   time.Now().UTC(),
	}
	if r.Duplicates == nil {
		r.Duplicates = []dedupe.Group{}
	}
	r.Feedback = Feedback{
		OverallQuality: r.Score,
		Summary:        summary(r),
		NextSteps:      nextSteps(r, cols),
	}
	return r
}

func normalizedRecords(records []manifest.Record) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		out[i] = normalize.Row(rec.Raw)
	}
	return out
}

// Failed returns the zero-record report for a document that could not be
// parsed. code and message describe the failure.
func Failed(fileName string, kind manifest.Kind, code, message string) *Report {
	issue := manifest.Issue{
		Severity:   manifest.SeverityCritical,
		Confidence: 1,
		Code:       code,
		Message:    message,
		Suggestion: "Check that the file is a complete manifest in a supported format.",
	}
	return &Report{
		ID:          uuid.NewString(),
		FileName:    fileName,
		Kind:        kind,
		Breakdown:   map[string]bool{},
		Errors:      []manifest.Issue{issue},
		Warnings:    []string{},
		Suggestions: []string{issue.Suggestion},
		Duplicates:  []dedupe.Group{},
		Columns:     map[string]string{},
		Records:     []map[string]any{},
		Feedback: Feedback{
			Summary:   "No records could be read: " + message,
			NextSteps: []string{"Re-export the manifest as CSV, XML, EDI, JSON, text or PDF and upload it again."},
		},
		CreatedAt: time.Now().UTC(),
	}
}

// DocumentScore is the rounded mean rubric score of the records. A document
// without records scores 0.
func DocumentScore(records []manifest.Record) int {
	if len(records) == 0 {
		return 0
	}
	total := 0
	for _, rec := range records {
		total += rules.Score(rec)
	}
	return int(math.Round(float64(total) / float64(len(records))))
}

// Confidence is the rubric weight whose columns were found in the document.
func Confidence(cols mapping.ColumnMap) int {
	total := 0
	for _, c := range rules.Rubric {
		for _, f := range rules.RubricFields[c.Name] {
			if cols.Has(f) {
				total += c.Weight
				break
			}
		}
	}
	return total
}

// breakdown marks a criterion true when every record passes it.
func breakdown(records []manifest.Record) map[string]bool {
	out := make(map[string]bool, len(rules.Rubric))
	for _, c := range rules.Rubric {
		pass := len(records) > 0
		for _, rec := range records {
			if !c.Valid(rec) {
				pass = false
				break
			}
		}
		out[c.Name] = pass
	}
	return out
}

func warnings(cols mapping.ColumnMap) []string {
	out := []string{}
	for _, f := range warnFields {
		if !cols.Has(f) {
			out = append(out, fmt.Sprintf("No column found for %s", f))
		}
	}
	return out
}

func columns(cols mapping.ColumnMap) map[string]string {
	out := make(map[string]string, len(cols.Columns))
	for f, c := range cols.Columns {
		out[string(f)] = c.Header
	}
	return out
}

// suggestions lists distinct issue suggestions in issue order.
func suggestions(issues []manifest.Issue) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, is := range issues {
		s := strings.TrimSpace(is.Suggestion)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func countBySeverity(issues []manifest.Issue) map[manifest.Severity]int {
	out := make(map[manifest.Severity]int, 4)
	for _, is := range issues {
		out[is.Severity]++
	}
	return out
}

func summary(r *Report) string {
	if r.RecordCount == 0 {
		return "The document contains no records."
	}
	if len(r.Errors) == 0 {
		return fmt.Sprintf("%d records checked with no issues. Compliance score %d/100.", r.RecordCount, r.Score)
	}
	n := countBySeverity(r.Errors)
	return fmt.Sprintf("%d records checked, %d issues found (%d critical, %d high, %d medium, %d low). Compliance score %d/100.",
		r.RecordCount, len(r.Errors),
		n[manifest.SeverityCritical], n[manifest.SeverityHigh], n[manifest.SeverityMedium], n[manifest.SeverityLow],
		r.Score)
}

func nextSteps(r *Report, cols mapping.ColumnMap) []string {
	var steps []string
	n := countBySeverity(r.Errors)
	if n[manifest.SeverityCritical] > 0 {
		steps = append(steps, fmt.Sprintf("Resolve %d critical issues before filing.", n[manifest.SeverityCritical]))
	}

	fixable := 0
	for _, is := range r.Errors {
		// correction generates missing manifest IDs
		if is.Autofix != nil || is.Code == rules.CodeManifestIDMissing {
			fixable++
		}
	}
	if fixable > 0 {
		steps = append(steps, fmt.Sprintf("Download the corrected file to apply %d automatic fixes.", fixable))
	}
	if len(r.Duplicates) > 0 {
		steps = append(steps, fmt.Sprintf("Review %d groups of duplicate lines.", len(r.Duplicates)))
	}

	var missing []string
	for _, f := range warnFields {
		if !cols.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		steps = append(steps, "Add columns for "+strings.Join(missing, ", ")+".")
	}

	if len(steps) == 0 {
		steps = append(steps, "No action needed.")
	}
	return steps
}

// Narrator writes a narrative summary of a report.
type Narrator interface {
	Narrate(ctx context.Context, r *Report) (string, error)
}

// Narrate replaces the rule-derived summary with one written by n. Any
// failure or an empty narrative keeps the existing summary and sets
// FallbackUsed. Scores are never changed.
func (r *Report) Narrate(ctx context.Context, n Narrator) error {
	if n == nil {
		r.FallbackUsed = true
		return nil
	}
	text, err := n.Narrate(ctx, r)
	if err != nil {
		r.FallbackUsed = true
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		r.FallbackUsed = true
		return nil
	}
	r.Feedback.Summary = text
	return nil
}
