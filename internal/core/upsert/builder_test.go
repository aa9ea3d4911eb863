package upsert

import (
	"strings"
	"testing"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

func TestSourceID(t *testing.T) {
	got := SourceID("sess-1", "2024-03-15")
	want := "claude-sess-1-2024-03-15"
	if got != want {
		t.Errorf("SourceID = %q, want %q", got, want)
	}
}

func TestBuildCandidateBasic(t *testing.T) {
	group := BucketGroup{
		UserID:      "user-1",
		Source:      "claude_code",
		SessionID:   "sess-1",
		ProjectPath: "/home/dev/project",
		Date:        "2024-03-15",
		Buckets: []model.HourlyBucket{
			{
				UserMessages: []model.Message{
					{Role: model.RoleUser, Timestamp: at(t, "2024-03-15T10:05:00Z"), Content: "fix the bug in the parser"},
				},
				AssistantMessages: []model.Message{
					{Role: model.RoleAssistant, Timestamp: at(t, "2024-03-15T10:06:00Z"), Content: strings.Repeat("x", 50)},
				},
				ToolCalls: []model.ToolUse{
					{Name: "edit", Detail: "parser.go"},
					{Name: "bash", Detail: "go test ./..."},
				},
			},
		},
	}

	item := BuildCandidate(group, 8.0)

	if item.UserID != "user-1" {
		t.Errorf("UserID = %q", item.UserID)
	}
	if item.Source != "claude_code" {
		t.Errorf("Source = %q", item.Source)
	}
	if item.SourceID != "claude-sess-1-2024-03-15" {
		t.Errorf("SourceID = %q", item.SourceID)
	}
	if item.Title != "fix the bug in the parser" {
		t.Errorf("Title = %q", item.Title)
	}
	if !strings.Contains(item.Description, "Changed files:") || !strings.Contains(item.Description, "parser.go") {
		t.Errorf("Description missing changed files section: %q", item.Description)
	}
	if !strings.Contains(item.Description, "Commands:") || !strings.Contains(item.Description, "go test ./...") {
		t.Errorf("Description missing commands section: %q", item.Description)
	}
	if item.HoursSource != model.HoursSourceDerived {
		t.Errorf("HoursSource = %v, want HoursSourceDerived", item.HoursSource)
	}
	if item.Hours <= 0 {
		t.Errorf("Hours = %v, want > 0", item.Hours)
	}
	if item.StartTime.IsZero() || item.EndTime.IsZero() {
		t.Errorf("expected non-zero start/end time")
	}
}

func TestBuildCandidateWithCommits(t *testing.T) {
	group := BucketGroup{
		UserID:      "user-1",
		Source:      "claude_code",
		SessionID:   "sess-1",
		ProjectPath: "/home/dev/project",
		Date:        "2024-03-15",
		Buckets: []model.HourlyBucket{
			{
				UserMessages: []model.Message{
					{Role: model.RoleUser, Timestamp: at(t, "2024-03-15T10:05:00Z"), Content: "ship the feature"},
				},
			},
		},
		Commits: []model.Commit{
			{Hash: "abcdef1234567890", Subject: "add feature flag", Timestamp: at(t, "2024-03-15T10:10:00Z")},
		},
	}

	item := BuildCandidate(group, 8.0)
	if !strings.Contains(item.Description, "Commits:") || !strings.Contains(item.Description, "abcdef12 add feature flag") {
		t.Errorf("Description missing commits section: %q", item.Description)
	}
}

func TestFirstMeaningfulUserTitleSkipsTrivialAndUnmeaningful(t *testing.T) {
	messages := []model.Message{
		{Role: model.RoleUser, Timestamp: at(t, "2024-03-15T10:00:00Z"), Content: ""},
		{Role: model.RoleAssistant, Timestamp: at(t, "2024-03-15T10:01:00Z"), Content: "short"},
		{Role: model.RoleUser, Timestamp: at(t, "2024-03-15T10:02:00Z"), Content: "investigate the slow query in the reporting job"},
	}
	title := firstMeaningfulUserTitle(messages)
	if title != "investigate the slow query in the reporting job" {
		t.Errorf("title = %q", title)
	}
}

func TestUniqueFileAndCommandDetailsDeduplicateAndCap(t *testing.T) {
	var toolCalls []model.ToolUse
	for i := 0; i < 20; i++ {
		toolCalls = append(toolCalls, model.ToolUse{Name: "edit", Detail: "same_file.go"})
	}
	files := uniqueFileDetails(toolCalls, maxChangedFiles)
	if len(files) != 1 {
		t.Errorf("got %d unique files, want 1 (deduplicated)", len(files))
	}

	toolCalls = nil
	for i := 0; i < 20; i++ {
		toolCalls = append(toolCalls, model.ToolUse{Name: "bash", Detail: time.Duration(i).String()})
	}
	commands := uniqueCommandDetails(toolCalls, maxShellCommands)
	if len(commands) != maxShellCommands {
		t.Errorf("got %d commands, want capped at %d", len(commands), maxShellCommands)
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("abcdef1234567890"); got != "abcdef12" {
		t.Errorf("shortHash = %q", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash(short) = %q, want unchanged", got)
	}
}
