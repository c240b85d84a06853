package collab

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/manifestcheck/internal/manifest"
)

var validate = validator.New()

// FixResponse is a parsed correction proposal.
type FixResponse struct {
	// Record holds only canonical fields; other keys are dropped.
	Record map[manifest.Field]string `validate:"required,min=1"`

	// Claimed is the score the collaborator says it reached. Informational.
	Claimed float64

	Notes string `validate:"max=4000"`
}

// ExtractJSON returns the JSON object embedded in text. Markdown code fences
// and any prose around the object are discarded.
func ExtractJSON(text string) (string, error) {
	text = stripFences(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object", ErrMalformed)
	}
	obj := text[start : end+1]
	if !gjson.Valid(obj) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	return obj, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the language tag line
		text = text[nl+1:]
	}
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// ParseFix parses a correction response. The object must carry a "record"
// object with at least one canonical field.
func ParseFix(text string) (*FixResponse, error) {
	obj, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	doc := gjson.Parse(obj)
	rec := doc.Get("record")
	if !rec.IsObject() {
		return nil, fmt.Errorf("%w: missing record object", ErrMalformed)
	}

	out := &FixResponse{Record: map[manifest.Field]string{}}
	rec.ForEach(func(key, value gjson.Result) bool {
		if !manifest.IsField(key.String()) {
			return true
		}
		switch value.Type {
		case gjson.Null:
		case gjson.String:
			out.Record[manifest.Field(key.String())] = value.String()
		case gjson.Number, gjson.True, gjson.False:
			out.Record[manifest.Field(key.String())] = value.Raw
		}
		return true
	})

	for _, key := range []string{"score", "compliance_score", "confidence"} {
		if v := doc.Get(key); v.Type == gjson.Number {
			out.Claimed = v.Float()
			break
		}
	}
	out.Notes = doc.Get("notes").String()

	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return out, nil
}

// ParseNarrative reads a narrative response. A JSON object with a "summary"
// string is unwrapped; plain text is used as-is.
func ParseNarrative(text string) (string, error) {
	if obj, err := ExtractJSON(text); err == nil {
		if s := gjson.Get(obj, "summary"); s.Type == gjson.String {
			text = s.String()
		} else {
			return "", fmt.Errorf("%w: missing summary", ErrMalformed)
		}
	}
	text = strings.TrimSpace(stripFences(text))
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
