// Package openaicompat implements llm.Client against any OpenAI-compatible
// Chat Completions endpoint via github.com/openai/openai-go. This covers the
// "openai" and "openai-compatible" providers, and "ollama" by pointing
// BaseURL at a local Ollama server's OpenAI-compatible API.
package openaicompat

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/wilbur182/recap/internal/core/llm"
)

// chatClient captures the subset of the SDK used here, so tests can
// substitute a fake without live credentials.
type chatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements llm.Client against an OpenAI-compatible Chat Completions
// endpoint.
type Client struct {
	chat     chatClient
	provider string
	model    string
}

var _ llm.Client = (*Client)(nil)

// New builds a Client for provider ("openai", "openai-compatible", or
// "ollama") talking to model at baseURL. An empty baseURL uses the SDK's
// default OpenAI endpoint. An empty model, or an empty apiKey for any
// provider other than "ollama", yields a client whose IsConfigured reports
// false, so callers can construct one unconditionally from config.
func New(provider, apiKey, model, baseURL string) *Client {
	if model == "" || (apiKey == "" && provider != "ollama") {
		return &Client{}
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	oc := openai.NewClient(opts...)
	return &Client{chat: &oc.Chat.Completions, provider: provider, model: model}
}

// IsConfigured reports whether the client has a usable model and (for
// hosted providers) credentials.
func (c *Client) IsConfigured() bool {
	return c.chat != nil && c.model != ""
}

// Provider returns the configured provider label.
func (c *Client) Provider() string { return c.provider }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// SummarizeProjectWork issues a single-turn chat completion and returns the
// assistant's reply plus token usage.
func (c *Client) SummarizeProjectWork(ctx context.Context, project, workItemsText string) (string, llm.Usage, error) {
	if !c.IsConfigured() {
		return "", llm.Usage{}, llm.ErrNotConfigured
	}
	prompt := buildPrompt(project, workItemsText)
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("%s chat.completions.new: %w", c.provider, err)
	}
	text, err := extractText(resp)
	if err != nil {
		return "", llm.Usage{}, err
	}
	usage := llm.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	return text, usage, nil
}

func extractText(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openaicompat: response contained no choices")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", errors.New("openaicompat: response message had empty content")
	}
	return content, nil
}

func buildPrompt(project, workItemsText string) string {
	return fmt.Sprintf(
		"Summarize the following work items for project %q in at most 5 bullet points. "+
			"Be concrete about what changed; do not invent detail not present below.\n\n%s",
		project, workItemsText,
	)
}
