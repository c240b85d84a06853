package collab

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/JonMunkholm/manifestcheck/internal/config"
	"github.com/JonMunkholm/manifestcheck/internal/manifest"
	"github.com/JonMunkholm/manifestcheck/internal/report"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"fence without tag", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", "Here you go: {\"a\":{\"b\":2}} hope it helps", `{"a":{"b":2}}`, false},
		{"no object", "sorry, I cannot help", "", true},
		{"truncated", `{"a":`, "", true},
		{"invalid", `{a:1}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFix(t *testing.T) {
	resp, err := ParseFix("```json\n" + `{
		"record": {"hs_code": "0847120", "quantity": 10, "origin": "CN", "comment": "ignored", "uom": null},
		"score": 9.5,
		"notes": "padded HS code"
	}` + "\n```")
	require.NoError(t, err)

	assert.Equal(t, map[manifest.Field]string{
		manifest.FieldHSCode:   "0847120",
		manifest.FieldQuantity: "10",
		manifest.FieldOrigin:   "CN",
	}, resp.Record)
	assert.Equal(t, 9.5, resp.Claimed)
	assert.Equal(t, "padded HS code", resp.Notes)
}

func TestParseFix_Rejects(t *testing.T) {
	tests := map[string]string{
		"no record":          `{"score": 100}`,
		"record not object":  `{"record": "done"}`,
		"no canonical field": `{"record": {"colour": "red"}}`,
		"not json":           `The record looks fine.`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFix(in)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseNarrative(t *testing.T) {
	got, err := ParseNarrative(`{"summary": "Two lines need duty."}`)
	require.NoError(t, err)
	assert.Equal(t, "Two lines need duty.", got)

	got, err = ParseNarrative("  Plain words.  ")
	require.NoError(t, err)
	assert.Equal(t, "Plain words.", got)

	_, err = ParseNarrative(`{"text": "x"}`)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseNarrative("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChain_Complete(t *testing.T) {
	model := &fakeModel{reply: "  {\"record\":{}}  "}
	c := NewLangChain(model)

	got, err := c.Complete(context.Background(), Prompt{System: "sys", User: "user"})
	require.NoError(t, err)
	assert.Equal(t, `{"record":{}}`, got)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
}

func TestLangChain_Errors(t *testing.T) {
	_, err := NewLangChain(&fakeModel{reply: "   "}).Complete(context.Background(), Prompt{User: "u"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("rate limited")
	_, err = NewLangChain(&fakeModel{err: boom}).Complete(context.Background(), Prompt{User: "u"})
	assert.ErrorIs(t, err, boom)
}

func TestNew(t *testing.T) {
	c, err := New(config.CollaboratorConfig{Provider: "none"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(config.CollaboratorConfig{Provider: "oracle"})
	assert.Error(t, err)
}

type clientFunc func(ctx context.Context, p Prompt) (string, error)

func (f clientFunc) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

func TestNarrator(t *testing.T) {
	r := &report.Report{FileName: "a.csv", RecordCount: 2, Score: 80}

	var seen Prompt
	n := &Narrator{Client: clientFunc(func(_ context.Context, p Prompt) (string, error) {
		seen = p
		return `{"summary": "Mostly ready."}`, nil
	})}

	got, err := n.Narrate(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "Mostly ready.", got)
	assert.Contains(t, seen.User, `"score":80`)
	assert.Contains(t, seen.System, "summary")

	_, err = (&Narrator{Client: Nop{}}).Narrate(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnavailable)
}
