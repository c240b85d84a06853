// Package views renders the HTML report page.
package views

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/report"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;margin:1rem 0}td,th{border:1px solid #cbd2d9;padding:.3rem .6rem;text-align:left}
.critical{color:#b91c1c}.high{color:#c2410c}.medium{color:#a16207}.low{color:#4b5563}
.score{font-size:2.5rem;font-weight:600}.alert{border:1px solid #b91c1c;padding:1rem;background:#fef2f2}`

// ReportPage renders a full HTML page for r.
func ReportPage(r *report.Report) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.open("Compliance report: " + r.FileName)

		p.printf(`<h1>%s</h1>`, esc(r.FileName))
		p.printf(`<p class="score">%d/100</p>`, r.Score)
		p.printf(`<p>%d records, %s layout, column confidence %d%%.</p>`, r.RecordCount, esc(string(r.Kind)), r.Confidence)
		p.printf(`<p>%s</p>`, esc(r.Feedback.Summary))
		if r.FallbackUsed {
			p.printf(`<p><em>Summary generated from rule results.</em></p>`)
		}

		if len(r.Feedback.NextSteps) > 0 {
			p.printf(`<h2>Next steps</h2><ol>`)
			for _, step := range r.Feedback.NextSteps {
				p.printf(`<li>%s</li>`, esc(step))
			}
			p.printf(`</ol>`)
		}

		if len(r.Breakdown) > 0 {
			p.printf(`<h2>Checks</h2><table><tr><th>Field</th><th>Result</th></tr>`)
			for _, name := range sortedKeys(r.Breakdown) {
				result := "pass"
				if !r.Breakdown[name] {
					result = "fail"
				}
				p.printf(`<tr><td>%s</td><td>%s</td></tr>`, esc(name), result)
			}
			p.printf(`</table>`)
		}

		if len(r.Errors) > 0 {
			p.printf(`<h2>Issues (%d)</h2><table><tr><th>Severity</th><th>Row</th><th>Field</th><th>Code</th><th>Message</th><th>Suggestion</th></tr>`, len(r.Errors))
			for _, is := range r.Errors {
				p.printf(`<tr class="%s"><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
					esc(string(is.Severity)), esc(string(is.Severity)), rows(is), esc(string(is.Field)),
					esc(is.Code), esc(is.Message), esc(is.Suggestion))
			}
			p.printf(`</table>`)
		}

		if len(r.Warnings) > 0 {
			p.printf(`<h2>Warnings</h2><ul>`)
			for _, warn := range r.Warnings {
				p.printf(`<li>%s</li>`, esc(warn))
			}
			p.printf(`</ul>`)
		}

		p.close()
		return p.err
	})
}

// ErrorAlert renders a failure page with the user message, suggested action
// and support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.open("Error")
		p.printf(`<div class="alert" role="alert"><strong>%s</strong>`, esc(message))
		if action != "" {
			p.printf(`<p>%s</p>`, esc(action))
		}
		p.printf(`<p><small>Code: %s</small></p></div>`, esc(code))
		p.close()
		return p.err
	})
}

// printer stops writing after the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) open(title string) {
	p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body>`,
		esc(title), pageStyle)
}

func (p *printer) close() {
	p.printf(`</body></html>`)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func rows(is manifest.Issue) string {
	if is.Row > 0 {
		return fmt.Sprint(is.Row)
	}
	parts := make([]string, len(is.Rows))
	for i, r := range is.Rows {
		parts[i] = fmt.Sprint(r)
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
