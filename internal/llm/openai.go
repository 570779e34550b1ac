package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAICompleter completes prompts with an OpenAI-compatible chat endpoint.
type OpenAICompleter struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI builds a chat-completions completer. BaseURL points it at any
// OpenAI-compatible server.
func NewOpenAI(cfg Config) (*OpenAICompleter, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: api key or base url is required")
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAICompleter{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Complete returns the first choice's message content.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrUnusable
	}
	return resp.Choices[0].Message.Content, nil
}
