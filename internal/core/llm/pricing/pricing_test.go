package pricing

import "testing"

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-10
}

func TestEstimateCostOpenAIGPT4oMini(t *testing.T) {
	cost := EstimateCost("openai", "gpt-4o-mini", 1000, 500)
	if !approxEqual(cost, 0.00045) {
		t.Errorf("cost = %v, want 0.00045", cost)
	}
}

func TestEstimateCostAnthropicSonnet(t *testing.T) {
	cost := EstimateCost("anthropic", "claude-3-5-sonnet-20241022", 1000, 500)
	if !approxEqual(cost, 0.0105) {
		t.Errorf("cost = %v, want 0.0105", cost)
	}
}

func TestEstimateCostOllamaIsFree(t *testing.T) {
	cost := EstimateCost("ollama", "llama3", 10000, 5000)
	if cost != 0 {
		t.Errorf("cost = %v, want 0", cost)
	}
}

func TestEstimateCostZeroTokens(t *testing.T) {
	cost := EstimateCost("openai", "gpt-4o-mini", 0, 0)
	if cost != 0 {
		t.Errorf("cost = %v, want 0", cost)
	}
}

func TestEstimateCostUnknownModelUsesConservativeDefault(t *testing.T) {
	cost := EstimateCost("openai", "some-future-model", 1_000_000, 0)
	if !approxEqual(cost, 1.00) {
		t.Errorf("cost = %v, want 1.00 (conservative default input rate)", cost)
	}
}

func TestEstimateCostUnknownProviderIsFree(t *testing.T) {
	cost := EstimateCost("unknown-provider", "whatever", 1_000_000, 1_000_000)
	if cost != 0 {
		t.Errorf("cost = %v, want 0 for unrecognized provider", cost)
	}
}
