// Package pricing estimates USD cost for an LLM call from provider, model,
// and token counts, using a static per-1M-token price table.
package pricing

import "strings"

type rate struct {
	inputPer1M  float64
	outputPer1M float64
}

// openaiRates is ordered most-specific prefix first: EstimateCost walks it
// top to bottom and takes the first match.
var openaiRates = []struct {
	prefix string
	rate   rate
}{
	{"gpt-5-nano", rate{0.10, 0.40}},
	{"gpt-5-mini", rate{0.15, 0.60}},
	{"gpt-5", rate{2.00, 8.00}},
	{"gpt-4.1-nano", rate{0.10, 0.40}},
	{"gpt-4.1-mini", rate{0.15, 0.60}},
	{"gpt-4.1", rate{2.00, 8.00}},
	{"gpt-4o-mini", rate{0.15, 0.60}},
	{"gpt-4o", rate{2.50, 10.00}},
	{"gpt-4-turbo", rate{10.00, 30.00}},
	{"gpt-4", rate{30.00, 60.00}},
	{"gpt-3.5", rate{0.50, 1.50}},
	{"o1-mini", rate{3.00, 12.00}},
	{"o1", rate{15.00, 60.00}},
}

// openaiDefault is the conservative fallback for an unrecognized OpenAI (or
// OpenAI-compatible) model.
var openaiDefault = rate{1.00, 3.00}

// anthropicDefault is sonnet pricing, used when the model string matches none
// of the known substrings below.
var anthropicDefault = rate{3.00, 15.00}

var anthropicContains = []struct {
	substr string
	rate   rate
}{
	{"claude-3-5-sonnet", rate{3.00, 15.00}},
	{"claude-3.5-sonnet", rate{3.00, 15.00}},
	{"claude-3-5-haiku", rate{0.80, 4.00}},
	{"claude-3.5-haiku", rate{0.80, 4.00}},
	{"claude-3-opus", rate{15.00, 75.00}},
	{"claude-3-sonnet", rate{3.00, 15.00}},
	{"claude-3-haiku", rate{0.25, 1.25}},
}

// EstimateCost returns the USD cost of one LLM call given provider, model,
// and token counts. Local providers (ollama) and unrecognized providers are
// priced at zero; unrecognized models within a known provider fall back to a
// conservative default rather than erroring.
func EstimateCost(provider, model string, promptTokens, completionTokens int) float64 {
	r := lookup(provider, model)
	input := float64(promptTokens) * r.inputPer1M / 1_000_000.0
	output := float64(completionTokens) * r.outputPer1M / 1_000_000.0
	return input + output
}

func lookup(provider, model string) rate {
	switch provider {
	case "openai", "openai-compatible":
		for _, c := range openaiRates {
			if strings.HasPrefix(model, c.prefix) {
				return c.rate
			}
		}
		return openaiDefault
	case "anthropic":
		for _, c := range anthropicContains {
			if strings.Contains(model, c.substr) {
				return c.rate
			}
		}
		return anthropicDefault
	case "ollama":
		return rate{0, 0}
	default:
		return rate{0, 0}
	}
}
