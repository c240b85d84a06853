package normalize

import (
	"regexp"
	"time"
)

// CanonicalDateLayout is the form every date is rewritten to.
const CanonicalDateLayout = "2006-01-02"

var (
	usDateRegex        = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	canonicalDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Layouts tried by ParseDate, most common first. Four-digit years only;
// two-digit years are too ambiguous to repair automatically.
var dateLayouts = []string{
	"2006-01-02", "1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
	"2006/01/02", "2006.01.02", "Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
	"20060102", time.RFC3339,
}

// Date rewrites MM/DD/YYYY to YYYY-MM-DD. Canonical values pass through and
// anything else is returned unchanged.
func Date(s string) string {
	s = CleanCell(s)
	m := usDateRegex.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	t, err := time.Parse("1/2/2006", m[1]+"/"+m[2]+"/"+m[3])
	if err != nil {
		return s
	}
	return t.Format(CanonicalDateLayout)
}

// IsCanonicalDate reports whether s is already YYYY-MM-DD and a real date.
func IsCanonicalDate(s string) bool {
	s = CleanCell(s)
	if !canonicalDateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(CanonicalDateLayout, s)
	return err == nil
}

// ParseDate tries every supported layout and returns the canonical form.
func ParseDate(s string) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateLayout), true
		}
	}
	return "", false
}
