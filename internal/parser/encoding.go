package parser

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// prepareText strips a UTF-8 byte order mark and repairs legacy encodings.
// Manifests exported from older spreadsheet tools are often Windows-1252, so
// invalid UTF-8 is decoded as that code page rather than mangled.
func prepareText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err == nil && utf8.Valid(decoded) {
		return decoded
	}
	return sanitizeUTF8(data)
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
