// Package claudecode implements sources.Source over Claude Code's own
// transcript layout: ${HOME}/.claude/projects/<encoded-path>/<session>.jsonl
// (spec §6). Each session file is parsed, hourly-bucketized, persisted as
// immutable snapshots, and upserted into deduplicated work items grouped by
// (session, local day).
package claudecode

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wilbur182/recap/internal/cache"
	"github.com/wilbur182/recap/internal/core/bucketizer"
	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/parser"
	"github.com/wilbur182/recap/internal/core/sources"
	"github.com/wilbur182/recap/internal/core/store"
	"github.com/wilbur182/recap/internal/core/upsert"
	"github.com/wilbur182/recap/internal/features"
)

// parseCacheSize bounds how many parsed sessions are kept in memory across
// sync passes; transcripts rarely number in the thousands per machine.
const parseCacheSize = 512

const SourceName = "claude_code"

// GitHarvester supplies commits observed during a work-item's time range,
// consumed during sync but owned by the git source (spec §4.4, §6).
type GitHarvester interface {
	CommitsInRange(repoPath string, start, end time.Time, authorEmail string) ([]model.Commit, error)
	GetGitUserEmail(repoPath string) string
}

// Source implements sources.Source for Claude Code transcripts.
type Source struct {
	Root       string // defaults to ${HOME}/.claude/projects
	Snapshots  *store.SnapshotStore
	WorkItems  *store.WorkItemStore
	Location   *time.Location
	DailyHours float64
	Git        GitHarvester // optional; nil disables commit harvesting

	parseCache *cache.Cache[model.ParsedSession]
}

// New builds a Source rooted at the default transcript directory. Root is
// resolved lazily so construction never fails when $HOME is briefly unset.
func New(snapshots *store.SnapshotStore, workItems *store.WorkItemStore, loc *time.Location, dailyHours float64, git GitHarvester) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{
		Snapshots:  snapshots,
		WorkItems:  workItems,
		Location:   loc,
		DailyHours: dailyHours,
		Git:        git,
		parseCache: cache.New[model.ParsedSession](parseCacheSize),
	}
}

func (s *Source) root() string {
	if s.Root != "" {
		return s.Root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}

// WatchRoot exposes the resolved transcript directory so a coordinator
// watcher can debounce filesystem events into sync passes.
func (s *Source) WatchRoot() string { return s.root() }

// SourceName implements sources.Source.
func (s *Source) SourceName() string { return SourceName }

// DisplayName implements sources.Source.
func (s *Source) DisplayName() string { return "Claude Code" }

// IsAvailable implements sources.Source: true when the transcript root
// directory exists.
func (s *Source) IsAvailable() bool {
	root := s.root()
	if root == "" {
		return false
	}
	info, err := os.Stat(root)
	return err == nil && info.IsDir()
}

// DiscoverProjects implements sources.Source. Each immediate subdirectory
// of root is one encoded project; its session count is the number of
// .jsonl files it contains. The project's real path is recovered per
// session during sync by reading the first message's cwd, so discovery
// reports the encoded directory name as a best-effort display name.
func (s *Source) DiscoverProjects() ([]sources.Project, error) {
	root := s.root()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var projects []sources.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		sessionFiles, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
		if err != nil || len(sessionFiles) == 0 {
			continue
		}
		projects = append(projects, sources.Project{
			Name:         decodeProjectName(entry.Name()),
			Path:         dir,
			SessionCount: len(sessionFiles),
		})
	}
	return projects, nil
}

// decodeProjectName turns an encoded directory name ("-home-user-repo") into
// a short display label; the authoritative project path still comes from
// each session's recorded cwd.
func decodeProjectName(encoded string) string {
	trimmed := strings.TrimPrefix(encoded, "-")
	parts := strings.Split(trimmed, "-")
	if len(parts) == 0 {
		return encoded
	}
	return parts[len(parts)-1]
}

// SyncSessions implements sources.Source: parses every session file under
// project, bucketizes it, persists snapshots, and upserts one work item per
// (session, local day) group.
func (s *Source) SyncSessions(project sources.Project, userID string) (sources.SyncResult, error) {
	result := sources.SyncResult{ProjectsScanned: 1}

	sessionFiles, err := filepath.Glob(filepath.Join(project.Path, "*.jsonl"))
	if err != nil {
		result.Error = err
		return result, err
	}

	for _, path := range sessionFiles {
		session, err := s.parseSession(path)
		if err != nil {
			result.SessionsSkipped++
			continue
		}
		if session.ProjectPath == "" {
			result.SessionsSkipped++
			continue
		}

		buckets := bucketizer.Bucketize(session, userID, s.Location)
		if len(buckets) == 0 {
			result.SessionsSkipped++
			continue
		}
		if err := s.Snapshots.SaveHourlySnapshots(userID, session.SessionID, buckets); err != nil {
			result.Error = err
			return result, err
		}

		groups := groupByDay(buckets, session)
		for date, group := range groups {
			group.Commits = s.harvestCommits(session.ProjectPath, group)
			candidate := upsert.BuildCandidate(upsert.BucketGroup{
				UserID:      userID,
				Source:      SourceName,
				SessionID:   session.SessionID,
				ProjectPath: session.ProjectPath,
				Date:        date,
				Buckets:     group.Buckets,
				Commits:     group.Commits,
			}, s.DailyHours)

			res, err := upsert.Upsert(s.WorkItems, candidate)
			if err != nil {
				result.Error = err
				return result, err
			}
			if res.Created {
				result.WorkItemsCreated++
			}
			if res.Updated {
				result.WorkItemsUpdated++
			}
		}
		result.SessionsProcessed++
	}

	return result, nil
}

// parseSession returns the parsed transcript at path, reusing the prior
// parse when the file's size and mtime are unchanged since the last pass.
func (s *Source) parseSession(path string) (model.ParsedSession, error) {
	info, statErr := os.Stat(path)
	if statErr == nil && s.parseCache != nil {
		if cached, ok := s.parseCache.Get(path, info.Size(), info.ModTime()); ok {
			return cached, nil
		}
	}

	session, err := parser.ParseFull(path)
	if err != nil {
		return session, err
	}
	if statErr == nil && s.parseCache != nil {
		s.parseCache.Set(path, session, info.Size(), info.ModTime())
	}
	return session, nil
}

func (s *Source) harvestCommits(projectPath string, group upsert.BucketGroup) []model.Commit {
	if s.Git == nil || !features.IsEnabled(features.GitHarvest.Name) {
		return nil
	}
	start, end := groupTimeRange(group.Buckets)
	if start.IsZero() || end.IsZero() {
		return nil
	}
	authorEmail := s.Git.GetGitUserEmail(projectPath)
	commits, err := s.Git.CommitsInRange(projectPath, start, end, authorEmail)
	if err != nil {
		return nil
	}
	return commits
}

func groupTimeRange(buckets []model.HourlyBucket) (start, end time.Time) {
	for _, b := range buckets {
		for _, m := range append(append([]model.Message{}, b.UserMessages...), b.AssistantMessages...) {
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
	}
	return start, end
}

// groupByDay partitions a session's hourly buckets by local calendar day
// (the hour_bucket prefix), matching the work-item grouping spec §4.4
// describes: one work item per (session, local day).
func groupByDay(buckets []model.HourlyBucket, session model.ParsedSession) map[string]upsert.BucketGroup {
	groups := make(map[string]upsert.BucketGroup)
	for _, b := range buckets {
		date := b.HourBucket[:10] // "2024-03-15T10" -> "2024-03-15"
		g, ok := groups[date]
		if !ok {
			g = upsert.BucketGroup{
				UserID:      b.UserID,
				Source:      SourceName,
				SessionID:   session.SessionID,
				ProjectPath: session.ProjectPath,
				Date:        date,
			}
		}
		g.Buckets = append(g.Buckets, b)
		groups[date] = g
	}
	return groups
}

var _ sources.Source = (*Source)(nil)
