package model

import "testing"

func TestMessageIsMeaningful(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"empty user", Message{Role: RoleUser, Content: "   "}, false},
		{"nonempty user", Message{Role: RoleUser, Content: "fix the bug"}, true},
		{"short assistant", Message{Role: RoleAssistant, Content: "ok"}, false},
		{"long assistant", Message{Role: RoleAssistant, Content: makeLong(50)}, true},
		{"curated tool", Message{Role: RoleTool, ToolUses: []ToolUse{{Name: "Bash"}}}, true},
		{"uncurated tool", Message{Role: RoleTool, ToolUses: []ToolUse{{Name: "WebFetch"}}}, false},
		{"system", Message{Role: RoleSystem, Content: "anything"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsMeaningful(); got != tt.want {
				t.Errorf("IsMeaningful() = %v, want %v", got, tt.want)
			}
		})
	}
}

func makeLong(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}

func TestHourlyBucketNonEmptyMeaningful(t *testing.T) {
	b := HourlyBucket{
		UserMessages: []Message{{Role: RoleUser, Content: "  "}},
		ToolCalls:    []ToolUse{{Name: "grep"}},
	}
	if !b.NonEmptyMeaningful() {
		t.Fatal("expected bucket with a curated tool call to be non-empty-meaningful")
	}
	empty := HourlyBucket{UserMessages: []Message{{Role: RoleUser, Content: "  "}}}
	if empty.NonEmptyMeaningful() {
		t.Fatal("expected bucket with only blank user message to be empty")
	}
}
