package parser

import (
	"encoding/json"
	"time"
)

// rawLine is the tolerant on-disk shape of one transcript JSONL line. Unknown
// fields are ignored; only timestamp, role/type and content/tool_use are
// required.
type rawLine struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	Timestamp time.Time       `json:"timestamp"`
	CWD       string          `json:"cwd"`
	Message   *rawMessage     `json:"message"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
}

// rawMessage is the nested "message" object Claude Code and compatible
// sources wrap actual content in.
type rawMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
}

type rawUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// rawContentBlock is one element of a structured content array: text,
// thinking, tool_use or tool_result.
type rawContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   any             `json:"content"`
	IsError   bool            `json:"is_error"`
}
