package claudecode

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wilbur182/recap/internal/core/store"
)

func writeTranscript(t *testing.T, dir, sessionID, projectPath string, base time.Time) string {
	t.Helper()
	path := filepath.Join(dir, sessionID+".jsonl")
	lines := []string{
		fmt.Sprintf(`{"type":"user","timestamp":%q,"cwd":%q,"message":{"role":"user","content":"please fix the crash on startup"}}`, base.Format(time.RFC3339), projectPath),
		fmt.Sprintf(`{"type":"assistant","timestamp":%q,"message":{"role":"assistant","content":"I found the bug and patched it in main.go, a fairly detailed explanation of the root cause follows so the fix is clear"}}`, base.Add(5*time.Minute).Format(time.RFC3339)),
	}
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTestSource(t *testing.T) (*Source, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "recap.db"), nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.DB.Close() })
	snapshots := store.NewSnapshotStore(db)
	items := store.NewWorkItemStore(db)
	src := New(snapshots, items, time.UTC, 8.0, nil)
	return src, db
}

func TestIsAvailableFalseForMissingRoot(t *testing.T) {
	src, _ := openTestSource(t)
	src.Root = filepath.Join(t.TempDir(), "does-not-exist")
	if src.IsAvailable() {
		t.Error("expected IsAvailable() == false")
	}
}

func TestDiscoverProjectsFindsEncodedDirectories(t *testing.T) {
	src, _ := openTestSource(t)
	root := t.TempDir()
	src.Root = root

	projDir := filepath.Join(root, "-home-dev-myrepo")
	if err := os.MkdirAll(projDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeTranscript(t, projDir, "session-1", "/home/dev/myrepo", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	projects, err := src.DiscoverProjects()
	if err != nil {
		t.Fatalf("DiscoverProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("projects = %+v", projects)
	}
	if projects[0].SessionCount != 1 {
		t.Errorf("SessionCount = %d, want 1", projects[0].SessionCount)
	}
	if projects[0].Name != "myrepo" {
		t.Errorf("Name = %q, want myrepo", projects[0].Name)
	}
}

func TestSyncSessionsCreatesOneWorkItemPerDay(t *testing.T) {
	src, db := openTestSource(t)
	root := t.TempDir()
	src.Root = root

	projDir := filepath.Join(root, "-home-dev-myrepo")
	if err := os.MkdirAll(projDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeTranscript(t, projDir, "session-1", "/home/dev/myrepo", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	projects, err := src.DiscoverProjects()
	if err != nil {
		t.Fatalf("DiscoverProjects: %v", err)
	}

	result, err := src.SyncSessions(projects[0], "user-1")
	if err != nil {
		t.Fatalf("SyncSessions: %v", err)
	}
	if result.SessionsProcessed != 1 {
		t.Errorf("SessionsProcessed = %d, want 1", result.SessionsProcessed)
	}
	if result.WorkItemsCreated != 1 {
		t.Errorf("WorkItemsCreated = %d, want 1", result.WorkItemsCreated)
	}

	items := store.NewWorkItemStore(db)
	item, err := items.FindBySourceID("user-1", SourceName, "claude-session-1-2024-03-15")
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	if item.ProjectPath != "/home/dev/myrepo" {
		t.Errorf("ProjectPath = %q", item.ProjectPath)
	}
}

func TestSyncSessionsIsIdempotent(t *testing.T) {
	src, _ := openTestSource(t)
	root := t.TempDir()
	src.Root = root

	projDir := filepath.Join(root, "-home-dev-myrepo")
	if err := os.MkdirAll(projDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeTranscript(t, projDir, "session-1", "/home/dev/myrepo", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	projects, _ := src.DiscoverProjects()
	if _, err := src.SyncSessions(projects[0], "user-1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	result, err := src.SyncSessions(projects[0], "user-1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.WorkItemsCreated != 0 || result.WorkItemsUpdated != 0 {
		t.Errorf("expected a no-op re-sync, got %+v", result)
	}
}

