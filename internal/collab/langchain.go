package collab

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/JonMunkholm/manifestcheck/internal/config"
)

// LangChain adapts a langchaingo model to Client.
type LangChain struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewLangChain wraps model. Responses are requested in JSON mode with zero
// temperature.
func NewLangChain(model llms.Model) *LangChain {
	return &LangChain{
		model: model,
		opts: []llms.CallOption{
			llms.WithTemperature(0),
			llms.WithJSONMode(),
		},
	}
}

// New builds the client selected by cfg. Provider "none" yields Nop.
func New(cfg config.CollaboratorConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return Nop{}, nil
	case "openai":
		model, err := newOpenAI(cfg)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return NewLangChain(model), nil
	default:
		return nil, fmt.Errorf("unsupported collaborator provider: %s", cfg.Provider)
	}
}

func newOpenAI(cfg config.CollaboratorConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

// Complete sends p and returns the first choice's text.
func (c *LangChain) Complete(ctx context.Context, p Prompt) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if p.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, p.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, p.User))

	resp, err := c.model.GenerateContent(ctx, messages, c.opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
