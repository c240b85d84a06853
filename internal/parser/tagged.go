package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

// itemTags are tried in order; the first name with at least one element wins.
var itemTags = []string{
	"item", "lineitem", "line_item", "line", "product", "goods", "cargo",
	"commodity", "entry", "record", "row",
}

type xmlNode struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []*xmlNode
	parent   *xmlNode
}

func (n *xmlNode) isLeaf() bool { return len(n.children) == 0 }

func parseTagged(data []byte) (*manifest.Document, error) {
	root, err := decodeTree(data)
	if err != nil {
		return nil, err
	}

	items := findItems(root)
	if len(items) == 0 && hasLeafChildren(root) {
		// a document that is itself one item
		items = []*xmlNode{root}
	}

	inItem := make(map[*xmlNode]bool, len(items))
	for _, it := range items {
		inItem[it] = true
	}

	doc := &manifest.Document{Meta: map[string]string{}}
	var metaKeys []string
	if len(items) > 0 && items[0] != root {
		walk(root, func(n *xmlNode) bool {
			if inItem[n] {
				return false
			}
			if n.isLeaf() && n != root {
				key := metaKey(n.name)
				if _, exists := doc.Meta[key]; !exists {
					doc.Meta[key] = strings.TrimSpace(n.text.String())
					metaKeys = append(metaKeys, key)
				}
			}
			return true
		})
	}

	headers := newHeaderSet()
	for i, it := range items {
		raw := map[string]string{}
		var keys []string
		put := func(name, value string) {
			key := ClassifyTag(name)
			if _, exists := raw[key]; exists {
				return
			}
			raw[key] = strings.TrimSpace(value)
			keys = append(keys, key)
		}

		for _, a := range it.attrs {
			put(a.Name.Local, a.Value)
		}
		walk(it, func(n *xmlNode) bool {
			if n != it && n.isLeaf() {
				put(n.name, n.text.String())
			}
			return true
		})
		for _, key := range metaKeys {
			if _, exists := raw[key]; !exists {
				raw[key] = doc.Meta[key]
				keys = append(keys, key)
			}
		}

		headers.add(keys...)
		doc.Records = append(doc.Records, manifest.NewRecord(i+1, raw))
	}

	doc.Headers = headers.list
	fillMissing(doc)
	return doc, nil
}

// decodeTree builds a lightweight element tree. Input is already UTF-8, so
// declared charsets are accepted as-is.
func decodeTree(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var root, cur *xmlNode
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if root != nil {
				// keep what was read before the damage
				break
			}
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local, attrs: t.Attr, parent: cur}
			if cur == nil {
				if root != nil {
					continue
				}
				root = n
			} else {
				cur.children = append(cur.children, n)
			}
			cur = n
		case xml.EndElement:
			if cur != nil {
				cur = cur.parent
			}
		case xml.CharData:
			if cur != nil {
				cur.text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("decode xml: no root element")
	}
	return root, nil
}

func findItems(root *xmlNode) []*xmlNode {
	for _, tag := range itemTags {
		var found []*xmlNode
		walk(root, func(n *xmlNode) bool {
			if n != root && strings.EqualFold(n.name, tag) && (!n.isLeaf() || len(n.attrs) > 0) {
				found = append(found, n)
				return false
			}
			return true
		})
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

func hasLeafChildren(n *xmlNode) bool {
	for _, c := range n.children {
		if c.isLeaf() {
			return true
		}
	}
	return false
}

// walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func walk(n *xmlNode, fn func(*xmlNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		walk(c, fn)
	}
}

// metaKey names a document-level tag. Document totals are kept apart from
// per-item values.
func metaKey(tag string) string {
	key := ClassifyTag(tag)
	if key == string(manifest.FieldTotalValue) {
		return manifest.ShipmentTotalKey
	}
	return key
}

// tagRules classify tag names by substring, most specific first.
var tagRules = []struct {
	field   manifest.Field
	needles []string
}{
	{manifest.FieldManifestID, []string{"manifestid", "manifestno", "manifestnumber", "shipmentid", "shipmentno", "consignmentid"}},
	{manifest.FieldHSCode, []string{"hscode", "htscode", "htsus", "tariffcode", "commoditycode", "harmonized", "harmonised"}},
	{manifest.FieldTariffRate, []string{"tariffrate", "dutyrate", "taxrate", "ratepct"}},
	{manifest.FieldDuty, []string{"duty", "duties"}},
	{manifest.FieldUnitValue, []string{"unitprice", "unitvalue", "unitcost", "price"}},
	{manifest.FieldWeight, []string{"weight", "kgs"}},
	{manifest.FieldQuantity, []string{"quantity", "qty"}},
	{manifest.FieldUOM, []string{"uom", "unitofmeasure", "measure"}},
	{manifest.FieldCurrency, []string{"currency", "ccy"}},
	{manifest.FieldIncoterm, []string{"incoterm"}},
	{manifest.FieldDate, []string{"date"}},
	{manifest.FieldOrigin, []string{"origin", "countryofexport", "shipfrom"}},
	{manifest.FieldDestination, []string{"destination", "countryofimport", "shipto"}},
	{manifest.FieldDescription, []string{"description", "desc", "goods", "product"}},
	{manifest.FieldTotalValue, []string{"totalvalue", "value", "amount", "total"}},
}

// exactTags catch short names too ambiguous for substring matching.
var exactTags = map[string]manifest.Field{
	"hs":       manifest.FieldHSCode,
	"hts":      manifest.FieldHSCode,
	"id":       manifest.FieldManifestID,
	"manifest": manifest.FieldManifestID,
	"rate":     manifest.FieldTariffRate,
	"unit":     manifest.FieldUOM,
	"units":    manifest.FieldUOM,
	"from":     manifest.FieldOrigin,
	"to":       manifest.FieldDestination,
	"dest":     manifest.FieldDestination,
	"cur":      manifest.FieldCurrency,
	"wt":       manifest.FieldWeight,
}

// ClassifyTag maps a tag or attribute name to a canonical field name.
// Unrecognized names are returned unchanged.
func ClassifyTag(tag string) string {
	compact := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, tag)

	if compact == "shipmenttotal" {
		// written back by the corrector; must survive a re-parse as-is
		return manifest.ShipmentTotalKey
	}
	if f, ok := exactTags[compact]; ok {
		return string(f)
	}
	for _, rule := range tagRules {
		for _, needle := range rule.needles {
			if strings.Contains(compact, needle) {
				return string(rule.field)
			}
		}
	}
	return tag
}
