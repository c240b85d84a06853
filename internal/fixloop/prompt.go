package fixloop

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/manifestcheck/internal/collab"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

const systemPrompt = `You correct single line items of customs manifests.
You receive a record with canonical field names, the compliance issues found in it,
and reference tariff headings. Fix only what the issues describe. Never invent
manifest IDs, values or quantities that are not implied by the record.
HS codes are digits only, six to ten long. Countries are ISO 3166 alpha-2 codes.
Reply with one JSON object: {"record": {<canonical field>: <value>, ...}, "notes": "<what you changed>"}`

type promptIssue struct {
	Code    string  `json:"code"`
	Field   string  `json:"field,omitempty"`
	Message string  `json:"message"`
	Autofix *string `json:"autofix,omitempty"`
}

// buildPrompt renders the correction request for one attempt.
func buildPrompt(rec manifest.Record, issues []manifest.Issue, excerpt string, reask bool) (collab.Prompt, error) {
	fields := make(map[string]string, len(rec.Fields))
	for f, v := range rec.Fields {
		fields[string(f)] = v
	}
	list := make([]promptIssue, len(issues))
	for i, is := range issues {
		list[i] = promptIssue{Code: is.Code, Field: string(is.Field), Message: is.Message, Autofix: is.Autofix}
	}

	body, err := json.MarshalIndent(map[string]any{
		"record": fields,
		"issues": list,
	}, "", "  ")
	if err != nil {
		return collab.Prompt{}, fmt.Errorf("marshal prompt: %w", err)
	}

	user := string(body)
	if excerpt != "" {
		user += "\n\nReference tariff headings:\n" + excerpt
	}
	if reask {
		user += "\n\nYour previous reply could not be used. Reply with the JSON object only."
	}
	return collab.Prompt{System: systemPrompt, User: user}, nil
}
