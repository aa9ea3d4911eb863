// Package bucketizer partitions a parsed session's messages into hour-aligned
// buckets in the user's local timezone, the unit the snapshot store persists.
package bucketizer

import (
	"fmt"
	"time"

	"github.com/wilbur182/recap/internal/core/model"
)

// Bucketize partitions session into an ordered list of HourlyBucket values,
// one per wall-clock hour touched by a message, in loc. If the session has no
// recovered project path it is not ingestable and an empty slice is
// returned. A message with no timestamp is attached to the previous
// message's bucket; if there is no previous message, it is dropped.
func Bucketize(session model.ParsedSession, userID string, loc *time.Location) []model.HourlyBucket {
	if session.ProjectPath == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}

	var buckets []model.HourlyBucket
	byKey := make(map[string]int) // hourBucket -> index into buckets

	var lastKey string
	haveLast := false

	for _, msg := range session.Messages {
		key := ""
		var hourStart time.Time
		if msg.Timestamp.IsZero() {
			if !haveLast {
				continue // no previous bucket to attach to; drop
			}
			key = lastKey
		} else {
			local := msg.Timestamp.In(loc)
			hourStart = time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
			key = hourKey(hourStart)
		}

		idx, ok := byKey[key]
		if !ok {
			idx = len(buckets)
			byKey[key] = idx
			buckets = append(buckets, model.HourlyBucket{
				UserID:      userID,
				SessionID:   session.SessionID,
				ProjectPath: session.ProjectPath,
				HourBucket:  key,
				HourStart:   hourStart,
				CreatedAt:   time.Now().UTC(),
			})
		}

		b := &buckets[idx]
		switch msg.Role {
		case model.RoleUser:
			b.UserMessages = append(b.UserMessages, msg)
		case model.RoleAssistant:
			b.AssistantMessages = append(b.AssistantMessages, msg)
		}
		for _, tu := range msg.ToolUses {
			b.ToolCalls = append(b.ToolCalls, tu)
			if path := filePathFromDetail(tu); path != "" {
				b.FilesModified = appendUnique(b.FilesModified, path)
			}
		}
		b.MessageCount++
		b.RawByteSize += msg.RawSize

		lastKey = key
		haveLast = true
	}

	return buckets
}

// hourKey formats t (already truncated to the hour) as an ISO-8601 local
// date+hour string, e.g. "2024-03-15T10".
func hourKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d", t.Year(), t.Month(), t.Day(), t.Hour())
}

// filePathFromDetail returns tu.Detail when the tool is a file-editing tool,
// since Detail is a file path only for that tool family.
func filePathFromDetail(tu model.ToolUse) string {
	switch lowerASCII(tu.Name) {
	case "edit", "write", "multiedit", "str_replace":
		return tu.Detail
	default:
		return ""
	}
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

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
