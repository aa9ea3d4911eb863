// Package parser reads append-only JSONL session transcripts into the two
// views the rest of the pipeline needs: a cheap metadata view for re-scans,
// and a full ordered view for ingestion. Both operations are pure with
// respect to the file: re-parsing an unchanged file yields identical results.
package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/wilbur182/recap/internal/core/model"
)

// scannerBufPool recycles bufio.Scanner buffers; transcripts can run to tens
// of megabytes for long-lived sessions.
var scannerBufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 1024*1024)
	},
}

func getScannerBuffer() []byte  { return scannerBufPool.Get().([]byte) }
func putScannerBuffer(b []byte) { scannerBufPool.Put(b) }

const maxLineSize = 10 * 1024 * 1024

// ParseMetadata streams path and returns a lightweight SessionMetadata view.
// Malformed lines are skipped and counted; the call succeeds as long as at
// least one well-formed message line was found.
func ParseMetadata(path string) (model.SessionMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.SessionMetadata{}, model.ErrNotFound
		}
		return model.SessionMetadata{}, fmt.Errorf("parser: open %s: %w", path, err)
	}
	defer file.Close()

	meta := model.SessionMetadata{
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
	}

	scanner := bufio.NewScanner(file)
	buf := getScannerBuffer()
	defer putScannerBuffer(buf)
	scanner.Buffer(buf, maxLineSize)

	var wellFormed int
	var byteSize int64
	for scanner.Scan() {
		line := scanner.Bytes()
		byteSize += int64(len(line)) + 1

		var raw rawLine
		if err := json.Unmarshal(line, &raw); err != nil {
			meta.MalformedLines++
			continue
		}
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		wellFormed++

		if meta.ProjectPath == "" && raw.CWD != "" {
			meta.ProjectPath = raw.CWD
		}
		if meta.FirstMessage.IsZero() {
			meta.FirstMessage = raw.Timestamp
		}
		if !raw.Timestamp.IsZero() {
			meta.LastMessage = raw.Timestamp
		}
		meta.MessageCount++
	}
	if err := scanner.Err(); err != nil {
		return model.SessionMetadata{}, fmt.Errorf("parser: scan %s: %w", path, err)
	}
	meta.ByteSize = byteSize

	if wellFormed == 0 {
		return model.SessionMetadata{}, model.ErrMalformed
	}
	return meta, nil
}

// ParseFull streams path in full and returns every message in on-disk order.
// The project path is recovered from the first message that carried a cwd;
// if none carried one, ProjectPath is empty and the session is later
// considered non-ingestable by the bucketizer. An out-of-order timestamp
// does not fail parsing.
func ParseFull(path string) (model.ParsedSession, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ParsedSession{}, model.ErrNotFound
		}
		return model.ParsedSession{}, fmt.Errorf("parser: open %s: %w", path, err)
	}
	defer file.Close()

	session := model.ParsedSession{
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
	}

	scanner := bufio.NewScanner(file)
	buf := getScannerBuffer()
	defer putScannerBuffer(buf)
	scanner.Buffer(buf, maxLineSize)

	var wellFormed int
	for scanner.Scan() {
		var raw rawLine
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		if raw.Type != "user" && raw.Type != "assistant" {
			continue
		}
		wellFormed++

		if session.ProjectPath == "" && raw.CWD != "" {
			session.ProjectPath = raw.CWD
		}

		role := model.RoleUser
		if raw.Type == "assistant" {
			role = model.RoleAssistant
		}

		var content string
		var toolUses []model.ToolUse
		var rawSize int
		if raw.Message != nil {
			content, toolUses, rawSize = parseContent(raw.Message.Content)
		}

		msg := model.Message{
			Role:      role,
			Timestamp: raw.Timestamp,
			Content:   content,
			ToolUses:  toolUses,
			RawSize:   rawSize,
		}

		session.Messages = append(session.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return session, fmt.Errorf("parser: scan %s: %w", path, err)
	}
	if wellFormed == 0 {
		return model.ParsedSession{}, model.ErrMalformed
	}

	return session, nil
}

// parseContent extracts plain text and tool calls from a message's content
// field, which may be a bare string or an array of typed blocks.
func parseContent(raw json.RawMessage) (string, []model.ToolUse, int) {
	if len(raw) == 0 {
		return "", nil, 0
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil, len(asString)
	}

	var blocks []rawContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil, len(raw)
	}

	var texts []string
	var toolUses []model.ToolUse
	toolResultCount := 0
	for _, b := range blocks {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			inputStr := ""
			if len(b.Input) > 0 {
				inputStr = string(b.Input)
			}
			toolUses = append(toolUses, model.ToolUse{
				Name:   b.Name,
				Input:  inputStr,
				Detail: detailFor(b.Name, inputStr),
			})
		case "tool_result":
			toolResultCount++
		}
	}

	content := strings.Join(texts, "\n")
	if content == "" && toolResultCount > 0 {
		content = fmt.Sprintf("[%d tool result(s)]", toolResultCount)
	}
	return content, toolUses, len(raw)
}

var xmlTagRegex = regexp.MustCompile(`<[^>]+>`)

// extractUserQuery pulls the user's actual request out of text that may be
// wrapped in Claude Code's system XML tags (<user_query>, <command-name>,
// caveats).
func extractUserQuery(s string) string {
	if start := strings.Index(s, "<user_query>"); start >= 0 {
		if end := strings.Index(s, "</user_query>"); end > start {
			if extracted := strings.TrimSpace(s[start+len("<user_query>") : end]); extracted != "" {
				return extracted
			}
		}
	}

	if strings.Contains(s, "<local-command-caveat>") || strings.Contains(s, "<command-name>") {
		if start := strings.Index(s, "<command-name>"); start >= 0 {
			if end := strings.Index(s[start:], "</command-name>"); end > 0 {
				cmdName := strings.TrimSpace(s[start+len("<command-name>") : start+end])
				cmdMsg := ""
				if msgStart := strings.Index(s, "<command-message>"); msgStart >= 0 {
					if msgEnd := strings.Index(s[msgStart:], "</command-message>"); msgEnd > 0 {
						cmdMsg = strings.TrimSpace(s[msgStart+len("<command-message>") : msgStart+msgEnd])
					}
				}
				if cmdMsg != "" && cmdMsg != cmdName {
					return cmdName + ": " + cmdMsg
				}
				return cmdName
			}
		}
	}

	cleaned := xmlTagRegex.ReplaceAllString(s, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimSpace(cleaned)

	skipPhrases := []string{
		"Caveat: The messages below",
		"Caveat:",
		"DO NOT respond to these messages",
	}
	for _, phrase := range skipPhrases {
		if strings.HasPrefix(cleaned, phrase) {
			return ""
		}
	}
	return cleaned
}

var trivialCommands = []string{
	"/clear", "/compact", "/config", "/help", "/init",
	"/bug", "/cost", "/doctor", "/feedback", "/login", "/logout",
	"clear", "compact", "help",
}

// isTrivialCommand reports whether s is a slash command that should never be
// used as a work-item title.
func isTrivialCommand(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return true
	}
	for _, cmd := range trivialCommands {
		if s == cmd || strings.HasPrefix(s, cmd+":") || strings.HasPrefix(s, cmd+" ") {
			return true
		}
	}
	return false
}

// TruncateTitle extracts the actual user query from s (stripping XML tags and
// trivial commands) and truncates it to maxGraphemes runes (Unicode code
// points), using "…" as an ellipsis. Grapheme clusters are not detected, so
// a character made of several code points can be cut in the middle.
func TruncateTitle(s string, maxGraphemes int) string {
	extracted := extractUserQuery(s)
	if isTrivialCommand(extracted) {
		extracted = ""
	}
	extracted = strings.ReplaceAll(extracted, "\n", " ")
	extracted = strings.ReplaceAll(extracted, "\r", "")
	extracted = strings.TrimSpace(extracted)

	runes := []rune(extracted)
	if len(runes) <= maxGraphemes {
		return extracted
	}
	if maxGraphemes <= 1 {
		return string(runes[:maxGraphemes])
	}
	return string(runes[:maxGraphemes-1]) + "…"
}

// detailFor derives a compact, human-readable detail string from a tool
// call's name and JSON input: a file path for edit tools, a command prefix
// for shell tools, a query for search tools.
func detailFor(name, inputJSON string) string {
	lower := strings.ToLower(name)
	var input map[string]any
	_ = json.Unmarshal([]byte(inputJSON), &input)

	switch {
	case lower == "edit" || lower == "write" || lower == "multiedit" || lower == "str_replace":
		if p, ok := input["file_path"].(string); ok {
			return p
		}
		if p, ok := input["path"].(string); ok {
			return p
		}
	case lower == "bash" || lower == "shell" || lower == "exec":
		if cmd, ok := input["command"].(string); ok {
			return firstLine(cmd, 80)
		}
	case lower == "grep" || lower == "search" || lower == "glob" || lower == "find":
		if q, ok := input["pattern"].(string); ok {
			return q
		}
		if q, ok := input["query"].(string); ok {
			return q
		}
	}
	return ""
}

func firstLine(s string, maxLen int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
