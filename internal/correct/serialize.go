package correct

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/normalize"
	"github.com/JonMunkholm/manifestcheck/internal/parser"
)

// Serialize writes doc's headers and records in the given format. Unknown
// formats are written as a JSON array.
func Serialize(doc *manifest.Document, format manifest.Format) ([]byte, error) {
	switch format {
	case manifest.FormatCSV:
		return writeDelimited(doc)
	case manifest.FormatXML:
		return writeTagged(doc)
	case manifest.FormatEDI:
		return writeSegments(doc), nil
	case manifest.FormatText:
		return writeTabular(doc), nil
	case manifest.FormatPDF:
		return writePDF(doc)
	default:
		return writeArray(doc)
	}
}

func writeDelimited(doc *manifest.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if doc.Delimiter != 0 {
		w.Comma = doc.Delimiter
	}

	if err := w.Write(doc.Headers); err != nil {
		return nil, err
	}
	row := make([]string, len(doc.Headers))
	for _, rec := range doc.Records {
		for i, h := range doc.Headers {
			row[i] = rec.Raw[h]
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var invalidXMLName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// xmlName turns a header into a usable element name.
func xmlName(h string) string {
	name := strings.Trim(invalidXMLName.ReplaceAllString(strings.TrimSpace(h), "_"), "_")
	if name == "" {
		return "field"
	}
	if c := name[0]; (c >= '0' && c <= '9') || c == '-' || c == '.' {
		name = "_" + name
	}
	return name
}

func writeTagged(doc *manifest.Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "manifest"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	for _, rec := range doc.Records {
		item := xml.StartElement{Name: xml.Name{Local: "item"}}
		if err := enc.EncodeToken(item); err != nil {
			return nil, err
		}
		for _, h := range doc.Headers {
			if err := enc.EncodeElement(rec.Raw[h], xml.StartElement{Name: xml.Name{Local: xmlName(h)}}); err != nil {
				return nil, err
			}
		}
		if err := enc.EncodeToken(item.End()); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

var segmentEscaper = strings.NewReplacer("*", " ", "~", " ", "\n", " ", "\r", " ")

// writeSegments writes one segment per canonical field and closes each
// record with END. Columns with no canonical field are not representable.
func writeSegments(doc *manifest.Document) []byte {
	var buf bytes.Buffer
	for _, rec := range doc.Records {
		for _, f := range manifest.Fields {
			code := parser.SegmentCode(f)
			v, ok := rec.Fields[f]
			if code == "" || !ok {
				continue
			}
			fmt.Fprintf(&buf, "%s*%s~\n", code, segmentEscaper.Replace(strings.TrimSpace(v)))
		}
		buf.WriteString("END~\n")
	}
	return buf.Bytes()
}

var cellEscaper = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

func tabCell(s string) string {
	s = strings.TrimSpace(cellEscaper.Replace(s))
	if s == "" {
		return parser.EmptyCell
	}
	return s
}

// writeTabular writes tab-separated lines. Blank cells are written as
// parser.EmptyCell so trailing columns survive trimming.
func writeTabular(doc *manifest.Document) []byte {
	var buf bytes.Buffer
	headers := make([]string, len(doc.Headers))
	for i, h := range doc.Headers {
		headers[i] = tabCell(h)
	}
	buf.WriteString(strings.Join(headers, "\t"))
	buf.WriteByte('\n')

	row := make([]string, len(doc.Headers))
	for _, rec := range doc.Records {
		for i, h := range doc.Headers {
			row[i] = tabCell(rec.Raw[h])
		}
		buf.WriteString(strings.Join(row, "\t"))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// writeArray writes a JSON array of objects with keys in header order.
// Numeric columns holding plain numbers are written as JSON numbers.
func writeArray(doc *manifest.Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, rec := range doc.Records {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, h := range doc.Headers {
			if j > 0 {
				buf.WriteString(", ")
			}
			key, err := json.Marshal(h)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteString(": ")

			v := rec.Raw[h]
			if normalize.IsNumericHeader(h) && jsonNumber.MatchString(v) {
				buf.WriteString(v)
				continue
			}
			val, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteString("}")
	}
	buf.WriteString("\n]\n")
	return buf.Bytes(), nil
}
