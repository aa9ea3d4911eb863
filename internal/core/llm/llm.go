// Package llm defines the abstraction the summarizer depends on for
// LLM-backed outcome generation: a provider-agnostic client plus a usage
// struct carrying the token counts needed for cost accounting.
package llm

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by a concrete client's SummarizeProjectWork
// when the client is not configured, and may be checked by callers that want to distinguish "no credentials" from a
// transient call failure.
var ErrNotConfigured = errors.New("llm: client not configured")

// Usage carries the token counts returned by a single LLM call, independent
// of provider wire format.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the summarizer's dependency on an LLM backend (spec §4.7).
// Implementations wrap a single provider (anthropic, openai-compatible).
type Client interface {
	// IsConfigured reports whether the client has usable credentials. The
	// summarizer calls this before attempting the LLM path at all.
	IsConfigured() bool

	// Provider returns the provider name used for cost lookups and usage
	// logging ("anthropic", "openai", "openai-compatible", "ollama").
	Provider() string

	// Model returns the model identifier in effect for this client.
	Model() string

	// SummarizeProjectWork sends a bounded work-items prompt for one project
	// and returns the generated outcome text plus token usage. Errors
	// (including timeout) are recoverable: the summarizer falls back to the
	// rule-based path on any error here.
	SummarizeProjectWork(ctx context.Context, project, workItemsText string) (outcome string, usage Usage, err error)
}

// CallTimeout bounds a single LLM call (spec §4.7: "recommended 60s").
// Callers derive a context with this timeout around SummarizeProjectWork so
// a slow provider degrades to the rule-based path rather than stalling a
// compaction cycle.
const CallTimeout = 60 * time.Second

// WithCallTimeout returns ctx bounded by CallTimeout, and the cancel func the
// caller must defer.
func WithCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, CallTimeout)
}
