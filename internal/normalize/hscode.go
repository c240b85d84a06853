package normalize

import "strings"

// HSDigits strips separators (dots, dashes, spaces) from an HS code.
func HSDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ', '\t', '/', '_':
			return -1
		}
		return r
	}, CleanCell(s))
}

// IsDigits reports whether s is non-empty and all ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// HSCode normalizes an HS code. Separators are removed; a six digit code that
// lost its leading zero gets one back; a code shorter than six digits is
// left-padded with zeros to six. Non-numeric input is returned with only the
// separators removed. HSCode(HSCode(x)) == HSCode(x).
func HSCode(s string) string {
	d := HSDigits(s)
	if !IsDigits(d) {
		return d
	}
	switch {
	case len(d) == 6 && d[0] != '0':
		return "0" + d
	case len(d) < 6:
		return strings.Repeat("0", 6-len(d)) + d
	default:
		return d
	}
}

// NeedsHSPadding reports whether d is a six digit code without a leading zero.
func NeedsHSPadding(d string) bool {
	return len(d) == 6 && IsDigits(d) && d[0] != '0'
}

// ValidHSCode reports whether s is a complete, already normalized HS code:
// six to ten digits that HSCode would leave unchanged.
func ValidHSCode(s string) bool {
	d := HSDigits(s)
	return IsDigits(d) && len(d) >= 6 && len(d) <= 10 && !NeedsHSPadding(d)
}
