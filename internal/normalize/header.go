package normalize

import "strings"

var numericHints = []string{"value", "duty", "rate", "price", "amount"}

// IsNumericHeader reports whether a column holds money or rate values.
func IsNumericHeader(header string) bool {
	h := strings.ToLower(header)
	for _, hint := range numericHints {
		if strings.Contains(h, hint) {
			return true
		}
	}
	return false
}

// IsDateHeader reports whether a column holds dates.
func IsDateHeader(header string) bool {
	return strings.Contains(strings.ToLower(header), "date")
}

// Value normalizes one raw cell by its header. Numeric columns become
// *float64 (nil when unparseable), date columns are rewritten to the
// canonical layout, and everything else is cleaned text.
func Value(header, raw string) any {
	switch {
	case IsNumericHeader(header):
		return Float(raw)
	case IsDateHeader(header):
		return Date(raw)
	default:
		return CleanCell(raw)
	}
}

// Row applies Value to every cell of a raw record.
func Row(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for h, v := range raw {
		out[h] = Value(h, v)
	}
	return out
}
