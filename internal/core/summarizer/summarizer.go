// Package summarizer produces the textual "outcome" for an hourly bucket or
// a roll-up (spec §4.6): a rule-based path with no network dependency, and
// an optional LLM-based path that falls back to the rule-based path on any
// failure.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wilbur182/recap/internal/core/compactor"
	"github.com/wilbur182/recap/internal/core/llm"
	"github.com/wilbur182/recap/internal/core/llm/pricing"
	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
)

const (
	maxDescriptionChars = 500
	maxPromptChars       = 12000
	purposeHourly        = "hourly_summary"
	purposeRollup         = "rollup_summary"
)

// Summarizer implements compactor.Summarizer. It owns no storage for
// summaries itself — it only generates outcome text and reports LLM usage —
// so the compactor remains the single writer of summary rows.
type Summarizer struct {
	Client llm.Client
	Usage  *store.UsageStore
	Now    func() time.Time
}

// New builds a Summarizer. client may be nil or unconfigured, in which case
// every call takes the rule-based path.
func New(client llm.Client, usage *store.UsageStore) *Summarizer {
	return &Summarizer{Client: client, Usage: usage, Now: time.Now}
}

// SummarizeHour implements compactor.Summarizer.
func (s *Summarizer) SummarizeHour(ctx context.Context, userID string, bucket model.HourlyBucket) (compactor.Result, error) {
	var messages []model.Message
	messages = append(messages, bucket.UserMessages...)
	messages = append(messages, bucket.AssistantMessages...)
	ruleOutcome := BuildRuleBased(messages)

	if s.Client == nil || !s.Client.IsConfigured() {
		return compactor.Result{Outcome: clamp(ruleOutcome)}, nil
	}

	prompt := buildHourPrompt(bucket.ProjectPath, messages)
	outcome, cost, degradeErr := s.callLLM(ctx, userID, bucket.ProjectPath, prompt, purposeHourly)
	if degradeErr != nil {
		return compactor.Result{Outcome: clamp(ruleOutcome), Degraded: true, DegradeErr: degradeErr}, nil
	}
	return compactor.Result{Outcome: clamp(outcome), Cost: cost}, nil
}

// hourBatchMarker delimits one hour's section within a batched prompt and
// response. The LLM is asked to echo it back so the response can be split
// deterministically.
const hourBatchMarker = "@@HOUR"

// SummarizeHourBatch implements compactor.Summarizer. It folds every bucket
// into one prompt and one LLM call, asking for a marker-delimited response;
// any parse failure or provider error degrades the whole batch to per-hour
// rule-based outcomes, each marked Degraded, with no further LLM calls.
func (s *Summarizer) SummarizeHourBatch(ctx context.Context, userID string, buckets []model.HourlyBucket) ([]compactor.Result, error) {
	if len(buckets) == 0 {
		return nil, nil
	}
	if len(buckets) == 1 || s.Client == nil || !s.Client.IsConfigured() {
		return s.summarizeEachHour(ctx, userID, buckets)
	}

	prompt := buildHourBatchPrompt(buckets)
	outcome, cost, degradeErr := s.callLLM(ctx, userID, buckets[0].ProjectPath, prompt, purposeHourly)
	if degradeErr != nil {
		return s.degradeEachHour(buckets, degradeErr), nil
	}

	sections := splitHourBatchResponse(outcome, len(buckets))
	if sections == nil {
		return s.degradeEachHour(buckets, fmt.Errorf("batch response missing %d hour markers", len(buckets))), nil
	}

	results := make([]compactor.Result, len(buckets))
	for i, section := range sections {
		results[i] = compactor.Result{Outcome: clamp(section)}
	}
	results[0].Cost = cost // the one LLM call's cost is attributed to the batch's first hour
	return results, nil
}

func (s *Summarizer) summarizeEachHour(ctx context.Context, userID string, buckets []model.HourlyBucket) ([]compactor.Result, error) {
	results := make([]compactor.Result, len(buckets))
	for i, b := range buckets {
		res, err := s.SummarizeHour(ctx, userID, b)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (s *Summarizer) degradeEachHour(buckets []model.HourlyBucket, degradeErr error) []compactor.Result {
	results := make([]compactor.Result, len(buckets))
	for i, b := range buckets {
		var messages []model.Message
		messages = append(messages, b.UserMessages...)
		messages = append(messages, b.AssistantMessages...)
		results[i] = compactor.Result{Outcome: clamp(BuildRuleBased(messages)), Degraded: true, DegradeErr: degradeErr}
	}
	return results
}

func buildHourBatchPrompt(buckets []model.HourlyBucket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", buckets[0].ProjectPath)
	b.WriteString("Summarize each hour below separately. Reply with exactly one section per hour, each starting on its own line with the hour's marker exactly as given.\n")
	for _, bucket := range buckets {
		var messages []model.Message
		messages = append(messages, bucket.UserMessages...)
		messages = append(messages, bucket.AssistantMessages...)
		fmt.Fprintf(&b, "\n%s %s\n", hourBatchMarker, bucket.HourBucket)
		b.WriteString(buildHourPrompt(bucket.ProjectPath, messages))
	}
	return b.String()
}

// splitHourBatchResponse splits a batched LLM reply on hourBatchMarker lines
// and returns exactly want sections in order, or nil if the marker count
// doesn't match.
func splitHourBatchResponse(response string, want int) []string {
	lines := strings.Split(response, "\n")
	var sections []string
	var current strings.Builder
	started := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), hourBatchMarker) {
			if started {
				sections = append(sections, strings.TrimSpace(current.String()))
			}
			current.Reset()
			started = true
			continue
		}
		if started {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}
	if started {
		sections = append(sections, strings.TrimSpace(current.String()))
	}
	if len(sections) != want {
		return nil
	}
	return sections
}

// SummarizeRollup implements compactor.Summarizer.
func (s *Summarizer) SummarizeRollup(ctx context.Context, userID string, scale model.SummaryScale, projectPath string, children []compactor.ChildSummary) (compactor.Result, error) {
	outcomes := make([]string, 0, len(children))
	for _, c := range children {
		outcomes = append(outcomes, c.Outcome)
	}
	ruleOutcome := BuildRollupRuleBased(outcomes)

	if s.Client == nil || !s.Client.IsConfigured() {
		return compactor.Result{Outcome: clamp(ruleOutcome)}, nil
	}

	prompt := buildRollupPrompt(projectPath, children)
	outcome, cost, degradeErr := s.callLLM(ctx, userID, projectPath, prompt, purposeRollup)
	if degradeErr != nil {
		return compactor.Result{Outcome: clamp(ruleOutcome), Degraded: true, DegradeErr: degradeErr}, nil
	}
	return compactor.Result{Outcome: clamp(outcome), Cost: cost}, nil
}

// callLLM invokes the configured client under a bounded timeout and always
// logs the attempt, success or failure, before returning.
func (s *Summarizer) callLLM(ctx context.Context, userID, project, prompt, purpose string) (string, *model.CostRecord, error) {
	callCtx, cancel := llm.WithCallTimeout(ctx)
	defer cancel()

	started := s.now()
	outcome, usage, err := s.Client.SummarizeProjectWork(callCtx, project, prompt)
	duration := s.now().Sub(started)

	provider := s.Client.Provider()
	modelName := s.Client.Model()
	cost := pricing.EstimateCost(provider, modelName, usage.PromptTokens, usage.CompletionTokens)

	entry := model.LLMUsageLog{
		ID:               uuid.NewString(),
		UserID:           userID,
		Provider:         provider,
		Model:            modelName,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		EstimatedCostUSD: cost,
		Purpose:          purpose,
		DurationMS:       duration.Milliseconds(),
		Status:           "ok",
	}
	if err != nil {
		entry.Status = "error"
		entry.ErrorMessage = err.Error()
	}
	if s.Usage != nil {
		_ = s.Usage.Append(entry)
	}
	if err != nil {
		return "", nil, fmt.Errorf("llm summarize: %w", err)
	}

	return outcome, &model.CostRecord{
		Provider:         provider,
		Model:            modelName,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		USD:              cost,
	}, nil
}

func (s *Summarizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func clamp(outcome string) string {
	const maxOutcomeChars = 2000
	runes := []rune(outcome)
	if len(runes) <= maxOutcomeChars {
		return outcome
	}
	return string(runes[:maxOutcomeChars])
}

func buildHourPrompt(projectPath string, messages []model.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", projectPath)
	for _, m := range messages {
		if m.Role != model.RoleUser || !m.IsMeaningful() {
			continue
		}
		desc := m.Content
		if len(desc) > maxDescriptionChars {
			desc = desc[:maxDescriptionChars]
		}
		ts := "unknown-time"
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Format("2006-01-02 15:04")
		}
		line := fmt.Sprintf("- %s: %s\n", ts, strings.ReplaceAll(desc, "\n", " "))
		if b.Len()+len(line) > maxPromptChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func buildRollupPrompt(projectPath string, children []compactor.ChildSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", projectPath)
	for _, c := range children {
		desc := c.Outcome
		if len(desc) > maxDescriptionChars {
			desc = desc[:maxDescriptionChars]
		}
		line := fmt.Sprintf("- %s:\n  %s\n", c.BucketKey, strings.ReplaceAll(desc, "\n", "\n  "))
		if b.Len()+len(line) > maxPromptChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
