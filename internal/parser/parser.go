// Package parser turns raw manifest bytes into a flat, ordered record set.
//
// Dispatch is by file extension through a registry of formats. Every parser
// collapses its input into manifest.Record values immediately, so nothing
// downstream sees format-specific types.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

var (
	// ErrNoRecords means the input was empty or nothing could be extracted.
	ErrNoRecords = errors.New("no records found")

	// ErrUnsupportedFormat means no parser is registered for the extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Parse detects the format of data from fileName and parses it.
//
// The returned document is never nil. On failure it carries the file name
// and detected kind with zero records, and the error wraps ErrNoRecords or
// ErrUnsupportedFormat. Parser panics are recovered into ErrNoRecords.
func Parse(fileName string, data []byte) (doc *manifest.Document, err error) {
	ext := filepath.Ext(fileName)
	doc = &manifest.Document{FileName: fileName, Kind: manifest.KindUnknown, Format: manifest.FormatJSON}

	f, ok := Lookup(ext)
	if !ok {
		return doc, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	doc.Kind = f.Kind
	doc.Format = f.Output

	if len(bytes.TrimSpace(data)) == 0 {
		return doc, ErrNoRecords
	}
	if !f.Binary {
		data = prepareText(data)
	}

	defer func() {
		if r := recover(); r != nil {
			doc = &manifest.Document{FileName: fileName, Kind: f.Kind, Format: f.Output}
			err = fmt.Errorf("%w: %s parser failed: %v", ErrNoRecords, f.Name, r)
		}
	}()

	parsed, perr := f.Parse(data)
	if perr != nil {
		return doc, fmt.Errorf("%w: %w", ErrNoRecords, perr)
	}

	parsed.FileName = fileName
	parsed.Kind = f.Kind
	parsed.Format = f.Output
	if len(parsed.Records) == 0 {
		return parsed, ErrNoRecords
	}
	return parsed, nil
}

// FromValue wraps already materialized content. A slice of objects passes
// through; a bare object becomes a one-record document. Byte and string
// values are parsed as JSON text.
func FromValue(name string, v any) (*manifest.Document, error) {
	var data []byte
	switch val := v.(type) {
	case []byte:
		data = val
	case string:
		data = []byte(val)
	case json.RawMessage:
		data = val
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return &manifest.Document{FileName: name, Kind: manifest.KindArray, Format: manifest.FormatJSON},
				fmt.Errorf("%w: %w", ErrNoRecords, err)
		}
		data = encoded
	}

	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return Parse(name, data)
}
