// Package rules validates manifest records.
//
// Each rule looks at one record and its document's column map and returns
// zero or more issues. Rules are independent; severity and confidence are
// fixed per rule. A rule whose input columns are not mapped is skipped.
package rules

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/mapping"
)

// Rule checks a single record.
type Rule interface {
	Name() string
	Check(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue
}

// Range bounds the first four digits of an HS code.
type Range struct {
	Min, Max int
}

// Options configures the default rule set.
type Options struct {
	// HSRange enables the chapter range heuristic when non-nil.
	HSRange *Range

	// DutyTolerance is the accepted absolute duty difference. Zero means 0.01.
	DutyTolerance decimal.Decimal

	// Workers bounds parallel record evaluation. Zero means 8.
	Workers int
}

// Engine runs a fixed set of rules.
type Engine struct {
	rules   []Rule
	workers int
}

// DefaultTolerance is the accepted duty difference in currency units.
var DefaultTolerance = decimal.RequireFromString("0.01")

// New returns an engine with the standard manifest rules.
func New(opts Options) *Engine {
	tol := opts.DutyTolerance
	if tol.IsZero() {
		tol = DefaultTolerance
	}
	return NewWithRules(opts.Workers,
		manifestIDRule{},
		hsCodeRule{rng: opts.HSRange},
		dutyRule{tolerance: tol},
		valueRule{},
		quantityRule{},
		countryRule{},
		descriptionRule{},
		dateRule{},
	)
}

// NewWithRules returns an engine running exactly the given rules.
func NewWithRules(workers int, rules ...Rule) *Engine {
	if workers <= 0 {
		workers = 8
	}
	return &Engine{rules: rules, workers: workers}
}

// Rules returns the rule names in evaluation order.
func (e *Engine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// ValidateRecord runs every rule against one record.
func (e *Engine) ValidateRecord(rec manifest.Record, cols mapping.ColumnMap) []manifest.Issue {
	var issues []manifest.Issue
	for _, r := range e.rules {
		for _, is := range r.Check(rec, cols) {
			if is.Row == 0 {
				is.Row = rec.Row
			}
			issues = append(issues, is)
		}
	}
	return issues
}

// Validate evaluates all records in parallel and returns their issues in
// document order. It returns only after every record has been checked.
func (e *Engine) Validate(ctx context.Context, doc *manifest.Document, cols mapping.ColumnMap) ([]manifest.Issue, error) {
	results := make([][]manifest.Issue, len(doc.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range doc.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.ValidateRecord(doc.Records[i], cols)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validate records: %w", err)
	}

	var all []manifest.Issue
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}
