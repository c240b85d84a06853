package parser

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// parseArray reads a JSON array of objects, or a bare object treated as a
// one-element array. Key order follows the source. Numbers keep their
// literal text and nested values are kept as JSON.
func parseArray(data []byte) (*manifest.Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}

	root := gjson.ParseBytes(data)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		items = []gjson.Result{root}
	default:
		return nil, fmt.Errorf("json root is %s, want array or object", root.Type)
	}

	doc := &manifest.Document{}
	headers := newHeaderSet()
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		raw := map[string]string{}
		item.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			raw[k] = scalarText(value)
			headers.add(k)
			return true
		})
		doc.Records = append(doc.Records, manifest.NewRecord(len(doc.Records)+1, raw))
	}

	doc.Headers = headers.list
	fillMissing(doc)
	return doc, nil
}

// ObjectKeys returns the keys of the JSON object at path in source order.
// An empty path means the root. Anything that is not an object yields nil.
func ObjectKeys(data []byte, path string) []string {
	obj := gjson.ParseBytes(data)
	if path != "" {
		obj = gjson.GetBytes(data, path)
	}
	if !obj.IsObject() {
		return nil
	}
	var keys []string
	obj.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}
