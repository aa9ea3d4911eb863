// Package model holds the entities shared across the ingestion-and-compaction
// core: users, sessions, messages, hourly buckets, work items, summaries,
// LLM usage rows and quota snapshots. Every cross-entity link is a key
// column, never an in-memory handle, so that pipeline stages stay
// independently replayable.
package model

import "time"

// Role identifies who produced a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// HoursSource discriminates between hours the pipeline derived and hours a
// human has since overridden.
type HoursSource string

const (
	HoursSourceDerived      HoursSource = "derived"
	HoursSourceUserModified HoursSource = "user_modified"
)

// SummaryScale is one of the four roll-up levels the compactor produces.
type SummaryScale string

const (
	ScaleHourly  SummaryScale = "hourly"
	ScaleDaily   SummaryScale = "daily"
	ScaleWeekly  SummaryScale = "weekly"
	ScaleMonthly SummaryScale = "monthly"
)

// QuotaWindow is one of the rate-limit windows a quota provider reports.
type QuotaWindow string

const (
	Window5h       QuotaWindow = "5h"
	Window7d       QuotaWindow = "7d"
	Window7dOpus   QuotaWindow = "7d-opus"
	Window7dSonnet QuotaWindow = "7d-sonnet"
)

// User is a local identity. Created on first run, never deleted while any
// owned row exists.
type User struct {
	ID                 string
	Username           string
	Email              string
	DisplayName        string
	LLMProvider        string
	LLMModel           string
	LLMAPIKey          string
	LLMBaseURL         string
	ManualAccessToken  string // manually stored OAuth token, priority 1 for quota lookup
	DailyWorkHours     float64
	NormalizeHours     bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Session is a transcript of one AI-coding-assistant conversation, identified
// by its file's base name on disk. Re-reading the same file must produce the
// same session ID.
type Session struct {
	ID           string
	UserID       string
	ProjectPath  string // the working directory recorded inside the transcript
	FirstMessage time.Time
	LastMessage  time.Time
	MessageCount int
	ByteSize     int64
}

// SessionMetadata is the lightweight view produced by parse_metadata: cheap
// enough to compute on every re-scan of a growing transcript file.
type SessionMetadata struct {
	SessionID       string
	ProjectPath     string
	FirstMessage    time.Time
	LastMessage     time.Time
	MessageCount    int
	ByteSize        int64
	MalformedLines  int
}

// ToolUse is a tool call recorded on a message.
type ToolUse struct {
	Name   string
	Input  string // raw or compacted JSON
	Detail string // compact human-readable detail: a file path, command prefix, query
}

// Message is one line in a transcript JSONL.
type Message struct {
	Role      Role
	Timestamp time.Time // zero value means "no timestamp recorded"
	Content   string
	ToolUses  []ToolUse
	RawSize   int // serialized length, used for bucket byte-size accounting
}

// IsMeaningful reports whether m counts toward hours estimation. A message is
// meaningful when (role=user and content is non-empty after stripping) or
// (role=assistant and content length exceeds a small threshold) or (role=tool
// and the tool name is in a curated set of file-edit/shell/search tools).
func (m Message) IsMeaningful() bool {
	switch m.Role {
	case RoleUser:
		return len(trimSpace(m.Content)) > 0
	case RoleAssistant:
		return len(m.Content) > meaningfulAssistantContentThreshold
	case RoleTool:
		for _, tu := range m.ToolUses {
			if isCuratedToolKind(tu.Name) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

const meaningfulAssistantContentThreshold = 40

// ParsedSession is the full view returned by parse_full: all messages in
// on-disk order, plus the project path recovered from the first message that
// carried a cwd.
type ParsedSession struct {
	SessionID   string
	ProjectPath string
	Messages    []Message
}

// HourlyBucket is the unit of durable raw ingestion: exactly one wall-clock
// hour, in the user's local timezone, of one session.
type HourlyBucket struct {
	ID                int64
	UserID            string
	SessionID         string
	ProjectPath       string
	HourBucket        string // ISO-8601 local date+hour truncated to the hour, e.g. "2024-03-15T10"
	HourStart         time.Time
	UserMessages      []Message
	AssistantMessages []Message
	ToolCalls         []ToolUse
	FilesModified     []string
	Commits           []Commit
	MessageCount      int
	RawByteSize       int
	CreatedAt         time.Time
}

// NonEmptyMeaningful reports whether the bucket contains at least one
// meaningful message. Empty-meaningful buckets are still persisted (useful
// for gap detection) but never drive hours estimation.
func (b HourlyBucket) NonEmptyMeaningful() bool {
	for _, m := range b.UserMessages {
		if m.IsMeaningful() {
			return true
		}
	}
	for _, m := range b.AssistantMessages {
		if m.IsMeaningful() {
			return true
		}
	}
	for _, t := range b.ToolCalls {
		if isCuratedToolKind(t.Name) {
			return true
		}
	}
	return false
}

// WorkItem is the externally visible, deduplicated per-session-per-day row.
type WorkItem struct {
	ID             string
	UserID         string
	Source         string
	SourceID       string
	Title          string
	Description    string
	Hours          float64
	Date           string // YYYY-MM-DD, local day of StartTime
	ProjectPath    string
	SessionID      string
	StartTime      time.Time
	EndTime        time.Time
	HoursSource    HoursSource
	ExternalIssue  string
	SyncedToRemote bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Commit is one Git commit harvested in a time range.
type Commit struct {
	Hash         string
	Subject      string
	Timestamp    time.Time
	FilesChanged []string
}

// CostRecord is the optional per-call LLM cost accounting attached to a
// summary.
type CostRecord struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	USD              float64
}

// Summary is a compacted record at one of four scales.
type Summary struct {
	ID          string
	UserID      string
	ProjectPath string
	Scale       SummaryScale
	BucketKey   string
	StartTime   time.Time
	EndTime     time.Time
	Outcome     string
	InputHash   uint64
	Cost        *CostRecord
	CreatedAt   time.Time
}

// LLMUsageLog is one row per LLM call, success or error.
type LLMUsageLog struct {
	ID               string
	UserID           string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
	Purpose          string
	DurationMS       int64
	Status           string // "ok" | "error"
	ErrorMessage     string
	CreatedAt        time.Time
}

// QuotaSnapshot is one row per observed quota window.
type QuotaSnapshot struct {
	ID            string
	Provider      string
	Window        QuotaWindow
	UsedPercent   float64
	ResetAt       time.Time
	CapturedAt    time.Time
	ExtraCredits  *float64
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// curatedToolKinds is the set of tool names that make a tool message
// meaningful: file edits, shell, search.
var curatedToolKinds = map[string]bool{
	"edit":       true,
	"write":      true,
	"multiedit":  true,
	"str_replace": true,
	"bash":       true,
	"shell":      true,
	"exec":       true,
	"grep":       true,
	"search":     true,
	"glob":       true,
	"find":       true,
}

func isCuratedToolKind(name string) bool {
	return curatedToolKinds[lowerASCII(name)]
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
