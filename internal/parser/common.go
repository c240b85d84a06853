package parser

import "github.com/JonMunkholm/manifestcheck/internal/manifest"

// headerSet keeps keys in first-seen order.
type headerSet struct {
	seen map[string]bool
	list []string
}

func newHeaderSet() *headerSet {
	return &headerSet{seen: map[string]bool{}}
}

func (h *headerSet) add(keys ...string) {
	for _, k := range keys {
		if !h.seen[k] {
			h.seen[k] = true
			h.list = append(h.list, k)
		}
	}
}

// fillMissing gives every record a value for every document header so that
// sparse formats look like a table downstream.
func fillMissing(doc *manifest.Document) {
	for _, rec := range doc.Records {
		for _, h := range doc.Headers {
			if _, ok := rec.Raw[h]; !ok {
				rec.Raw[h] = ""
			}
		}
	}
}
