package parser

import (
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// segmentFields maps segment codes to the field of their first element.
var segmentFields = map[string]manifest.Field{
	"ID":  manifest.FieldManifestID,
	"MAN": manifest.FieldManifestID,
	"ORG": manifest.FieldOrigin,
	"DST": manifest.FieldDestination,
	"HS":  manifest.FieldHSCode,
	"DSC": manifest.FieldDescription,
	"QTY": manifest.FieldQuantity,
	"UOM": manifest.FieldUOM,
	"VAL": manifest.FieldTotalValue,
	"UP":  manifest.FieldUnitValue,
	"WGT": manifest.FieldWeight,
	"CUR": manifest.FieldCurrency,
	"INC": manifest.FieldIncoterm,
	"DTY": manifest.FieldDuty,
	"DTE": manifest.FieldDate,
	"RTE": manifest.FieldTariffRate,
}

// secondElement maps segments whose second element carries another field.
var secondElement = map[string]manifest.Field{
	"QTY": manifest.FieldUOM,
	"VAL": manifest.FieldCurrency,
}

// SegmentCode returns the code written for field f, or "".
func SegmentCode(f manifest.Field) string {
	switch f {
	case manifest.FieldManifestID:
		return "ID"
	case manifest.FieldUOM:
		return "UOM"
	case manifest.FieldCurrency:
		return "CUR"
	}
	for code, field := range segmentFields {
		if field == f && code != "MAN" {
			return code
		}
	}
	return ""
}

// segment end-of-record codes
var recordEnd = map[string]bool{"END": true, "SE": true}

func splitSegments(data string) []string {
	return strings.FieldsFunc(data, func(r rune) bool {
		return r == '~' || r == '\n' || r == '\r'
	})
}

func elementSeparator(segments []string) string {
	for _, seg := range segments {
		for _, sep := range []string{"*", "+", "|"} {
			if strings.Contains(seg, sep) {
				return sep
			}
		}
	}
	return "*"
}

func parseSegments(data []byte) (*manifest.Document, error) {
	segments := splitSegments(string(data))
	sep := elementSeparator(segments)

	doc := &manifest.Document{}
	headers := newHeaderSet()
	var current map[string]string

	flush := func() {
		if len(current) == 0 {
			return
		}
		doc.Records = append(doc.Records, manifest.NewRecord(len(doc.Records)+1, current))
		current = nil
	}

	for _, seg := range segments {
		// EDIFACT ends segments with an apostrophe
		seg = strings.TrimSuffix(strings.TrimSpace(seg), "'")
		if seg == "" {
			continue
		}
		elems := strings.Split(seg, sep)
		code := strings.ToUpper(strings.TrimSpace(elems[0]))

		if recordEnd[code] {
			flush()
			continue
		}
		field, ok := segmentFields[code]
		if !ok {
			continue
		}
		if current == nil {
			current = map[string]string{}
		}
		if len(elems) > 1 {
			set(current, headers, field, elems[1])
		}
		if second, ok := secondElement[code]; ok && len(elems) > 2 {
			set(current, headers, second, elems[2])
		}
	}
	flush()

	doc.Headers = headers.list
	fillMissing(doc)
	return doc, nil
}

func set(rec map[string]string, headers *headerSet, f manifest.Field, value string) {
	key := string(f)
	rec[key] = strings.TrimSpace(value)
	headers.add(key)
}
