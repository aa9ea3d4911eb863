package upsert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/parser"
)

const (
	maxTitleGraphemes = 120
	maxChangedFiles   = 15
	maxShellCommands  = 10
)

// SourceID returns the work-item source_id for a (session, day) group:
// "claude-" + session_id + "-" + date. A session that spans two days
// produces two work items with different source_ids.
func SourceID(sessionID, date string) string {
	return "claude-" + sessionID + "-" + date
}

// BucketGroup is the input to BuildCandidate: every hourly bucket belonging
// to one (session, local day), already loaded from the snapshot store.
type BucketGroup struct {
	UserID      string
	Source      string // e.g. "claude_code"
	SessionID   string
	ProjectPath string
	Date        string // YYYY-MM-DD local
	Buckets     []model.HourlyBucket
	Commits     []model.Commit // harvested separately, see §4.4 git harvesting
}

// BuildCandidate produces the regenerated (rule-based) fields of a work item
// for group: hours, title, start/end time, description. It does not apply
// the user_modified preservation rule; see Upsert for that.
func BuildCandidate(group BucketGroup, dailyWorkHours float64) model.WorkItem {
	var allMessages []model.Message
	var toolCalls []model.ToolUse
	for _, b := range group.Buckets {
		allMessages = append(allMessages, b.UserMessages...)
		allMessages = append(allMessages, b.AssistantMessages...)
		toolCalls = append(toolCalls, b.ToolCalls...)
	}

	hours := EstimateHours(allMessages, dailyWorkHours)
	start, end := timeRange(allMessages)
	title := firstMeaningfulUserTitle(allMessages)
	description := buildDescription(group, toolCalls)

	return model.WorkItem{
		UserID:      group.UserID,
		Source:      group.Source,
		SourceID:    SourceID(group.SessionID, group.Date),
		Title:       title,
		Description: description,
		Hours:       hours,
		Date:        group.Date,
		ProjectPath: group.ProjectPath,
		SessionID:   group.SessionID,
		StartTime:   start,
		EndTime:     end,
		HoursSource: model.HoursSourceDerived,
	}
}

func timeRange(messages []model.Message) (start, end time.Time) {
	for _, m := range messages {
		if m.Timestamp.IsZero() {
			continue
		}
		if start.IsZero() || m.Timestamp.Before(start) {
			start = m.Timestamp
		}
		if end.IsZero() || m.Timestamp.After(end) {
			end = m.Timestamp
		}
	}
	return start, end
}

// firstMeaningfulUserTitle is the first meaningful user message, trimmed,
// first line, truncated to 120 runes by parser.TruncateTitle.
func firstMeaningfulUserTitle(messages []model.Message) string {
	sorted := make([]model.Message, len(messages))
	copy(sorted, messages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for _, m := range sorted {
		if m.Role != model.RoleUser || !m.IsMeaningful() {
			continue
		}
		title := parser.TruncateTitle(m.Content, maxTitleGraphemes)
		if title != "" {
			return title
		}
	}
	return ""
}

// buildDescription is a newline-joined digest: unique changed files (<=15),
// unique shell commands attempted (<=10), and commits observed in
// [start_time, end_time] by the configured author when a Git root was
// located at project_path.
func buildDescription(group BucketGroup, toolCalls []model.ToolUse) string {
	var lines []string

	files := uniqueFileDetails(toolCalls, maxChangedFiles)
	if len(files) > 0 {
		lines = append(lines, "Changed files:")
		for _, f := range files {
			lines = append(lines, "  "+f)
		}
	}

	commands := uniqueCommandDetails(toolCalls, maxShellCommands)
	if len(commands) > 0 {
		lines = append(lines, "Commands:")
		for _, c := range commands {
			lines = append(lines, "  "+c)
		}
	}

	if len(group.Commits) > 0 {
		lines = append(lines, "Commits:")
		for _, c := range group.Commits {
			lines = append(lines, fmt.Sprintf("  %s %s", shortHash(c.Hash), c.Subject))
		}
	}

	return strings.Join(lines, "\n")
}

func uniqueFileDetails(toolCalls []model.ToolUse, max int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tu := range toolCalls {
		switch strings.ToLower(tu.Name) {
		case "edit", "write", "multiedit", "str_replace":
			if tu.Detail == "" || seen[tu.Detail] {
				continue
			}
			seen[tu.Detail] = true
			out = append(out, tu.Detail)
			if len(out) >= max {
				return out
			}
		}
	}
	return out
}

func uniqueCommandDetails(toolCalls []model.ToolUse, max int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tu := range toolCalls {
		switch strings.ToLower(tu.Name) {
		case "bash", "shell", "exec":
			if tu.Detail == "" || seen[tu.Detail] {
				continue
			}
			seen[tu.Detail] = true
			out = append(out, tu.Detail)
			if len(out) >= max {
				return out
			}
		}
	}
	return out
}

func shortHash(hash string) string {
	if len(hash) >= 8 {
		return hash[:8]
	}
	return hash
}
