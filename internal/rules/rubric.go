package rules

import (
	"strings"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/normalize"
)

// Criterion is one weighted line of the compliance rubric.
type Criterion struct {
	Name   string
	Weight int
	Valid  func(manifest.Record) bool
}

// MaxScore is the score of a record that passes every criterion.
const MaxScore = 100

// Rubric is the fixed scoring table. Weights sum to MaxScore.
var Rubric = []Criterion{
	{Name: "hs_code", Weight: 20, Valid: func(r manifest.Record) bool {
		return normalize.ValidHSCode(r.Get(manifest.FieldHSCode))
	}},
	{Name: "value", Weight: 15, Valid: validValue},
	{Name: "quantity", Weight: 15, Valid: func(r manifest.Record) bool {
		q, ok := normalize.Number(r.Get(manifest.FieldQuantity))
		return ok && q.IsPositive()
	}},
	{Name: "origin", Weight: 15, Valid: func(r manifest.Record) bool {
		return normalize.ValidCountry(r.Get(manifest.FieldOrigin))
	}},
	{Name: "destination", Weight: 15, Valid: func(r manifest.Record) bool {
		return normalize.ValidCountry(r.Get(manifest.FieldDestination))
	}},
	{Name: "description", Weight: 15, Valid: func(r manifest.Record) bool {
		return validDescription(r.Get(manifest.FieldDescription))
	}},
	{Name: "uom", Weight: 5, Valid: func(r manifest.Record) bool {
		return r.Get(manifest.FieldUOM) != ""
	}},
}

// RubricFields maps rubric criteria to the canonical fields they read.
var RubricFields = map[string][]manifest.Field{
	"hs_code":     {manifest.FieldHSCode},
	"value":       {manifest.FieldTotalValue, manifest.FieldUnitValue},
	"quantity":    {manifest.FieldQuantity},
	"origin":      {manifest.FieldOrigin},
	"destination": {manifest.FieldDestination},
	"description": {manifest.FieldDescription},
	"uom":         {manifest.FieldUOM},
}

// Score rates a record from 0 to MaxScore. It depends only on the record.
func Score(rec manifest.Record) int {
	total := 0
	for _, c := range Rubric {
		if c.Valid(rec) {
			total += c.Weight
		}
	}
	return total
}

// Breakdown reports which rubric criteria a record passes.
func Breakdown(rec manifest.Record) map[string]bool {
	out := make(map[string]bool, len(Rubric))
	for _, c := range Rubric {
		out[c.Name] = c.Valid(rec)
	}
	return out
}

// validValue prefers total value and falls back to unit value.
func validValue(r manifest.Record) bool {
	raw := r.Get(manifest.FieldTotalValue)
	if raw == "" {
		raw = r.Get(manifest.FieldUnitValue)
	}
	v, ok := normalize.Number(raw)
	return ok && !v.IsNegative()
}

// validDescription wants real words, not blanks or bare numbers.
func validDescription(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}
	_, numeric := normalize.Number(s)
	return !numeric
}
