// Package anthropic implements llm.Client on top of the Anthropic Claude
// Messages API via github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wilbur182/recap/internal/core/llm"
)

// messagesClient captures the subset of the SDK used here, so tests can
// substitute a fake without a live API key.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

const defaultMaxTokens = 1024

var _ llm.Client = (*Client)(nil)

// Client implements llm.Client against Anthropic's Messages API.
type Client struct {
	msg       messagesClient
	model     string
	maxTokens int
}

// New builds a Client from an API key and model identifier. An empty apiKey
// yields a client whose IsConfigured reports false rather than an error, so
// callers can construct one unconditionally from config and let the
// summarizer decide whether to use it.
func New(apiKey, model string) *Client {
	if apiKey == "" || model == "" {
		return &Client{}
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Client{msg: &ac.Messages, model: model, maxTokens: defaultMaxTokens}
}

// IsConfigured reports whether the client has an API key and model.
func (c *Client) IsConfigured() bool {
	return c.msg != nil && c.model != ""
}

// Provider returns "anthropic".
func (c *Client) Provider() string { return "anthropic" }

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// SummarizeProjectWork issues a single-turn Messages.New request and returns
// the assistant's text reply plus token usage.
func (c *Client) SummarizeProjectWork(ctx context.Context, project, workItemsText string) (string, llm.Usage, error) {
	if !c.IsConfigured() {
		return "", llm.Usage{}, llm.ErrNotConfigured
	}
	prompt := buildPrompt(project, workItemsText)
	params := sdk.MessageNewParams{
		MaxTokens: int64(c.maxTokens),
		Model:     sdk.Model(c.model),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return "", llm.Usage{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	text, err := extractText(msg)
	if err != nil {
		return "", llm.Usage{}, err
	}
	usage := llm.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return text, usage, nil
}

func extractText(msg *sdk.Message) (string, error) {
	if msg == nil {
		return "", errors.New("anthropic: nil response")
	}
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic: response contained no text block")
}

func buildPrompt(project, workItemsText string) string {
	return fmt.Sprintf(
		"Summarize the following work items for project %q in at most 5 bullet points. "+
			"Be concrete about what changed; do not invent detail not present below.\n\n%s",
		project, workItemsText,
	)
}
