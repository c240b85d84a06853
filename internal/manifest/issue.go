package manifest

import (
	"encoding/json"
	"sort"
	"strings"
)

// Severity ranks issues. Four tiers, ordered critical > high > medium > low.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity accepts the four tiers and "major" as an alias of high.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, true
	case "high", "major":
		return SeverityHigh, true
	case "medium":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	default:
		return SeverityLow, false
	}
}

// UnmarshalJSON normalizes incoming severities, mapping "major" to high.
// Unknown values decode as low.
func (s *Severity) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s, _ = ParseSeverity(raw)
	return nil
}

// Rank returns 0 for critical through 3 for low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Issue is a single compliance finding. It is plain data.
type Issue struct {
	Severity   Severity          `json:"severity"`
	Confidence float64           `json:"confidence"`
	Field      Field             `json:"field"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Rationale  string            `json:"rationale,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Autofix    *string           `json:"autofix,omitempty"`
	Row        int               `json:"row,omitempty"`
	Rows       []int             `json:"rows,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// Fix returns a pointer to v for use as an Issue autofix.
func Fix(v string) *string {
	return &v
}

// SortIssues orders issues by severity, then row, then code. The sort is
// stable so equal issues keep their discovery order.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.firstRow() != b.firstRow() {
			return a.firstRow() < b.firstRow()
		}
		return a.Code < b.Code
	})
}

func (i Issue) firstRow() int {
	if i.Row != 0 {
		return i.Row
	}
	if len(i.Rows) > 0 {
		return i.Rows[0]
	}
	return 0
}
