package summarizer

import (
	"sort"
	"strings"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/parser"
)

const (
	maxRuleBullets  = 5
	titleGraphemes  = 120
	defaultGapMins  = 2.0 // weight given to a message with no measurable gap to its neighbor
	maxGapMinutes   = 30.0
)

// keyword groups a curated set of synonyms under one topic label. Order is
// priority: a message matching an earlier group is attributed to it even if
// a later group's synonym also appears in the text.
type keyword struct {
	topic    string
	synonyms []string
}

// keywordTable is the curated set build_rule_based_outcome matches against,
// covering the common verbs a developer's own prompts use to describe work.
var keywordTable = []keyword{
	{"Implemented", []string{"implement", "add ", "added", "build ", "built", "create ", "created"}},
	{"Fixed", []string{"fix", "bug", "resolve", "patch"}},
	{"Refactored", []string{"refactor", "restructure", "reorganize", "cleanup", "clean up"}},
	{"Tested", []string{"test", "verify", "validate"}},
	{"Investigated", []string{"investigate", "debug", "diagnose", "look into", "figure out"}},
	{"Documented", []string{"document", "readme", "write up", "doc "}},
	{"Reviewed", []string{"review", "audit", "check "}},
}

// BuildRuleBased produces a deterministic, network-free outcome from a
// bucket's meaningful messages: up to 5 bullets, one per matched keyword
// topic, ordered by aggregated minutes attributed to that topic. If no
// message matches the table, falls back to the top 5 cleaned message
// titles in chronological order.
func BuildRuleBased(messages []model.Message) string {
	sorted := meaningfulUserMessages(messages)
	if len(sorted) == 0 {
		return "No user-directed activity recorded for this period."
	}

	weights := messageWeights(sorted)

	type topicAgg struct {
		topic   string
		minutes float64
		example string
	}
	agg := make(map[string]*topicAgg)
	var order []string
	matchedAny := false

	for i, m := range sorted {
		content := strings.ToLower(m.Content)
		topic := matchTopic(content)
		if topic == "" {
			continue
		}
		matchedAny = true
		a, ok := agg[topic]
		if !ok {
			a = &topicAgg{topic: topic, example: cleanTitle(m.Content)}
			agg[topic] = a
			order = append(order, topic)
		}
		a.minutes += weights[i]
	}

	if !matchedAny {
		return topTitles(sorted, maxRuleBullets)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return agg[order[i]].minutes > agg[order[j]].minutes
	})

	if len(order) > maxRuleBullets {
		order = order[:maxRuleBullets]
	}

	var lines []string
	for _, topic := range order {
		a := agg[topic]
		if a.example == "" {
			lines = append(lines, "- "+a.topic)
			continue
		}
		lines = append(lines, "- "+a.topic+": "+a.example)
	}
	return strings.Join(lines, "\n")
}

func matchTopic(lowerContent string) string {
	for _, kw := range keywordTable {
		for _, syn := range kw.synonyms {
			if strings.Contains(lowerContent, syn) {
				return kw.topic
			}
		}
	}
	return ""
}

func meaningfulUserMessages(messages []model.Message) []model.Message {
	var out []model.Message
	for _, m := range messages {
		if m.Role == model.RoleUser && m.IsMeaningful() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// messageWeights assigns each message a duration in minutes: the gap to the
// next meaningful message, capped at maxGapMinutes, or defaultGapMins when
// the gap is unknown or this is the last message.
func messageWeights(sorted []model.Message) []float64 {
	weights := make([]float64, len(sorted))
	for i := range sorted {
		if i == len(sorted)-1 || sorted[i].Timestamp.IsZero() || sorted[i+1].Timestamp.IsZero() {
			weights[i] = defaultGapMins
			continue
		}
		gap := sorted[i+1].Timestamp.Sub(sorted[i].Timestamp).Minutes()
		if gap <= 0 {
			weights[i] = defaultGapMins
		} else if gap > maxGapMinutes {
			weights[i] = maxGapMinutes
		} else {
			weights[i] = gap
		}
	}
	return weights
}

// topTitles is the keyword-match-failure fallback: the top N cleaned
// message titles, chronological.
func topTitles(sorted []model.Message, max int) string {
	var lines []string
	for _, m := range sorted {
		title := cleanTitle(m.Content)
		if title == "" {
			continue
		}
		lines = append(lines, "- "+title)
		if len(lines) >= max {
			break
		}
	}
	if len(lines) == 0 {
		return "No user-directed activity recorded for this period."
	}
	return strings.Join(lines, "\n")
}

func cleanTitle(content string) string {
	return parser.TruncateTitle(content, titleGraphemes)
}

// BuildRollupRuleBased is the rule-based outcome for a daily/weekly/monthly
// rollup: the child summaries' own outcome text, deduplicated and capped at
// maxRuleBullets lines, since children already carry human-readable bullets.
func BuildRollupRuleBased(childOutcomes []string) string {
	seen := make(map[string]bool)
	var lines []string
	for _, outcome := range childOutcomes {
		for _, line := range strings.Split(outcome, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
			if len(lines) >= maxRuleBullets {
				return strings.Join(lines, "\n")
			}
		}
	}
	if len(lines) == 0 {
		return "No activity recorded for this period."
	}
	return strings.Join(lines, "\n")
}
