// Package dedupe finds line items that describe the same goods movement.
//
// Records are compared by a business key built from origin, destination, HS
// code, description and total value. Identifier fields are ignored, so two
// lines with different manifest IDs but the same content are duplicates.
// Because grouping is by key equality, membership is transitive.
package dedupe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// CodeDuplicate is the issue code for a duplicate group.
const CodeDuplicate = "DUPLICATE_RECORD"

// keyFields make up the business key, in order.
var keyFields = []manifest.Field{
	manifest.FieldOrigin,
	manifest.FieldDestination,
	manifest.FieldHSCode,
	manifest.FieldDescription,
	manifest.FieldTotalValue,
}

// unit separator; cannot appear in trimmed cell text
const keySep = "\x1f"

// Group is a set of rows sharing one business key.
type Group struct {
	Fingerprint string `json:"fingerprint"`
	Key         string `json:"key"`
	Rows        []int  `json:"rows"`
}

// BusinessKey returns the lowercase business key of a record.
func BusinessKey(rec manifest.Record) string {
	parts := make([]string, len(keyFields))
	for i, f := range keyFields {
		parts[i] = strings.ToLower(rec.Get(f))
	}
	return strings.Join(parts, keySep)
}

// Fingerprint returns a short stable hash of a business key.
func Fingerprint(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// blank keys carry no business content and are never grouped
var blankKey = strings.Repeat(keySep, len(keyFields)-1)

// Detect groups records by business key and returns the groups with more
// than one member, ordered by their first row.
func Detect(records []manifest.Record) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, rec := range records {
		key := BusinessKey(rec)
		if key == blankKey {
			continue
		}
		if i, ok := index[key]; ok {
			groups[i].Rows = append(groups[i].Rows, rec.Row)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Fingerprint: Fingerprint(key), Key: key, Rows: []int{rec.Row}})
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Rows) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Issues returns one issue per group listing all member rows.
func Issues(groups []Group) []manifest.Issue {
	issues := make([]manifest.Issue, 0, len(groups))
	for _, g := range groups {
		issues = append(issues, manifest.Issue{
			Severity:   manifest.SeverityHigh,
			Confidence: 0.9,
			Field:      manifest.FieldDescription,
			Code:       CodeDuplicate,
			Message:    fmt.Sprintf("Rows %s describe the same goods", joinRows(g.Rows)),
			Rationale:  "Duplicate lines overstate the shipment and double the duty owed.",
			Suggestion: "Remove the repeated lines; correction keeps the first occurrence.",
			Rows:       g.Rows,
			Context: map[string]string{
				"fingerprint":  g.Fingerprint,
				"business_key": strings.ReplaceAll(g.Key, keySep, " | "),
			},
		})
	}
	return issues
}

// Unique returns the records whose business key has not been seen before,
// keeping document order, and the number dropped.
func Unique(records []manifest.Record) ([]manifest.Record, int) {
	seen := make(map[string]bool, len(records))
	out := make([]manifest.Record, 0, len(records))
	for _, rec := range records {
		key := BusinessKey(rec)
		if key != blankKey {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}
