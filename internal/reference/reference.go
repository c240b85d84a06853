// Package reference looks up tariff classification codes.
//
// Lookups feed the correction prompt with nearby HS headings. They are
// advisory only: callers bound each lookup with a timeout and carry on with
// an empty result when the source is slow or down.
package reference

import (
	"context"
	"sort"
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/normalize"
)

// Code is one classification entry.
type Code struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Lookup finds classification codes.
type Lookup interface {
	// ByPrefix returns codes starting with prefix, in code order.
	ByPrefix(ctx context.Context, prefix string) ([]Code, error)

	// Search returns up to limit codes whose description matches text.
	Search(ctx context.Context, text string, limit int) ([]Code, error)
}

// DefaultLimit caps prefix results.
const DefaultLimit = 25

// Static is an in-memory code table.
type Static struct {
	codes []Code
}

// NewStatic returns a table over codes, sorted by code.
func NewStatic(codes []Code) *Static {
	sorted := append([]Code(nil), codes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	return &Static{codes: sorted}
}

// Builtin returns a table of common HS headings.
func Builtin() *Static {
	return NewStatic(builtinCodes)
}

func (s *Static) ByPrefix(_ context.Context, prefix string) ([]Code, error) {
	prefix = normalize.HSDigits(prefix)
	var out []Code
	for _, c := range s.codes {
		if strings.HasPrefix(c.Code, prefix) {
			out = append(out, c)
			if len(out) == DefaultLimit {
				break
			}
		}
	}
	return out, nil
}

// Search ranks entries by how many words of text their description holds.
func (s *Static) Search(_ context.Context, text string, limit int) ([]Code, error) {
	words := searchWords(text)
	if len(words) == 0 {
		return nil, nil
	}

	type hit struct {
		code  Code
		score int
	}
	var hits []hit
	for _, c := range s.codes {
		desc := strings.ToLower(c.Description)
		n := 0
		for _, w := range words {
			if strings.Contains(desc, w) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{c, n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]Code, limit)
	for i := range out {
		out[i] = hits[i].code
	}
	return out, nil
}

// searchWords lowercases text and keeps words of three letters or more.
func searchWords(text string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

var builtinCodes = []Code{
	{"0101", "Live horses, asses, mules and hinnies"},
	{"0201", "Meat of bovine animals, fresh or chilled"},
	{"0303", "Fish, frozen"},
	{"0406", "Cheese and curd"},
	{"0803", "Bananas, including plantains, fresh or dried"},
	{"0901", "Coffee, whether or not roasted or decaffeinated"},
	{"0902", "Tea, whether or not flavoured"},
	{"1006", "Rice"},
	{"2204", "Wine of fresh grapes"},
	{"2710", "Petroleum oils, other than crude"},
	{"3004", "Medicaments put up in measured doses"},
	{"3304", "Beauty, make-up and skin-care preparations"},
	{"3923", "Plastic articles for the conveyance or packing of goods"},
	{"4011", "New pneumatic tyres, of rubber"},
	{"4202", "Trunks, suitcases, handbags and similar containers"},
	{"4819", "Cartons, boxes and cases of paper or paperboard"},
	{"5208", "Woven fabrics of cotton"},
	{"6109", "T-shirts, singlets and other vests, knitted"},
	{"6203", "Men's suits, jackets, trousers and shorts"},
	{"6403", "Footwear with outer soles of rubber and uppers of leather"},
	{"6911", "Tableware and kitchenware, of porcelain or china"},
	{"7108", "Gold, unwrought or in semi-manufactured forms"},
	{"7308", "Structures and parts of structures, of iron or steel"},
	{"8414", "Air or vacuum pumps, compressors and fans"},
	{"8415", "Air conditioning machines"},
	{"8418", "Refrigerators, freezers and heat pumps"},
	{"8450", "Household or laundry-type washing machines"},
	{"8471", "Automatic data processing machines; laptops and computers"},
	{"847130", "Portable automatic data processing machines (laptops)"},
	{"847150", "Processing units for automatic data processing machines"},
	{"8473", "Parts and accessories of computers and office machines"},
	{"8504", "Electrical transformers, static converters and power supplies"},
	{"8507", "Electric accumulators and batteries"},
	{"8517", "Telephone sets, smartphones and network equipment"},
	{"851713", "Smartphones"},
	{"8528", "Monitors, projectors and television receivers"},
	{"8542", "Electronic integrated circuits"},
	{"8703", "Motor cars and vehicles for transporting persons"},
	{"8708", "Parts and accessories of motor vehicles"},
	{"8712", "Bicycles, not motorised"},
	{"9018", "Medical, surgical and dental instruments"},
	{"9403", "Furniture and parts thereof"},
	{"9503", "Toys, scale models and puzzles"},
	{"9506", "Sports and outdoor games equipment"},
}
