// Package normalize cleans raw manifest values into canonical forms.
//
// These functions handle the messy reality of hand-edited manifests:
//   - Currency symbols and thousands separators in numbers
//   - Accounting negatives such as (12.50)
//   - US and ISO date layouts
//   - HS codes with dots, dashes and dropped leading zeros
//   - Country names where an ISO code is expected
//
// Nothing here returns an error. Unparseable input yields a false ok flag or
// a nil pointer, and the caller decides whether that is an issue.
package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a plain number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CleanCell removes common spreadsheet artifacts from a value:
// surrounding whitespace, an Excel formula prefix (="...") and quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// numberText strips currency symbols, separators and whitespace and turns
// accounting parentheses into a leading minus.
func numberText(s string) string {
	s = CleanCell(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '\u20ac', '\u00a3', ',', ' ', '\t', '\u00a0':
			return -1
		}
		return r
	}, s)

	if negative && s != "" {
		s = "-" + s
	}
	return s
}

// Number parses a numeric string. ok is false for empty or unparseable input.
func Number(s string) (decimal.Decimal, bool) {
	s = numberText(s)
	if s == "" || !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Float parses a numeric string, returning nil when it cannot be parsed.
func Float(s string) *float64 {
	d, ok := Number(s)
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// Money formats d with two decimal places.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
