package upsert

import (
	"path/filepath"
	"testing"

	"github.com/wilbur182/recap/internal/core/model"
	"github.com/wilbur182/recap/internal/core/store"
)

func openTestItemStore(t *testing.T) *store.WorkItemStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recap.db")
	s, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return store.NewWorkItemStore(s)
}

func candidate(sourceID string) model.WorkItem {
	return model.WorkItem{
		UserID:      "user-1",
		Source:      "claude_code",
		SourceID:    sourceID,
		Title:       "fix the bug",
		Description: "Changed files:\n  parser.go",
		Hours:       0.3,
		Date:        "2024-03-15",
		ProjectPath: "/home/dev/project",
		SessionID:   "sess-1",
		HoursSource: model.HoursSourceDerived,
	}
}

func TestUpsertCreatesOnFirstRun(t *testing.T) {
	itemStore := openTestItemStore(t)

	res, err := Upsert(itemStore, candidate("claude-sess-1-2024-03-15"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !res.Created || res.Updated {
		t.Errorf("Result = %+v, want Created=true Updated=false", res)
	}

	got, err := itemStore.FindBySourceID("user-1", "claude_code", "claude-sess-1-2024-03-15")
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	if got.ID == "" {
		t.Errorf("expected a generated ID")
	}
}

func TestUpsertIsNoOpWhenUnchanged(t *testing.T) {
	itemStore := openTestItemStore(t)
	c := candidate("claude-sess-2-2024-03-15")

	if _, err := Upsert(itemStore, c); err != nil {
		t.Fatalf("Upsert (create): %v", err)
	}

	// Re-running with an identical candidate (simulating re-ingestion of an
	// unchanged transcript) must report neither created nor updated.
	res, err := Upsert(itemStore, c)
	if err != nil {
		t.Fatalf("Upsert (re-run): %v", err)
	}
	if res.Created || res.Updated {
		t.Errorf("Result = %+v, want both false on an unchanged re-run", res)
	}
}

func TestUpsertUpdatesWhenCandidateChanges(t *testing.T) {
	itemStore := openTestItemStore(t)
	c := candidate("claude-sess-3-2024-03-15")

	if _, err := Upsert(itemStore, c); err != nil {
		t.Fatalf("Upsert (create): %v", err)
	}

	c.Hours = 0.7
	c.Title = "fix the bug and add tests"
	res, err := Upsert(itemStore, c)
	if err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}
	if res.Created || !res.Updated {
		t.Errorf("Result = %+v, want Created=false Updated=true", res)
	}

	got, err := itemStore.FindBySourceID("user-1", "claude_code", "claude-sess-3-2024-03-15")
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	if got.Hours != 0.7 || got.Title != "fix the bug and add tests" {
		t.Errorf("got = %+v, want updated Hours/Title", got)
	}
}

func TestUpsertPreservesUserModifiedFields(t *testing.T) {
	itemStore := openTestItemStore(t)
	c := candidate("claude-sess-4-2024-03-15")

	if _, err := Upsert(itemStore, c); err != nil {
		t.Fatalf("Upsert (create): %v", err)
	}

	existing, err := itemStore.FindBySourceID("user-1", "claude_code", "claude-sess-4-2024-03-15")
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	existing.Hours = 2.5
	existing.Title = "manually corrected title"
	existing.HoursSource = model.HoursSourceUserModified
	if err := itemStore.Save(existing); err != nil {
		t.Fatalf("Save (simulate user edit): %v", err)
	}

	// Re-ingesting the same transcript regenerates a candidate with the
	// original rule-based fields; the user's edits must survive.
	regenerated := candidate("claude-sess-4-2024-03-15")
	regenerated.Hours = 0.4
	regenerated.Title = "fix the bug (regenerated)"
	res, err := Upsert(itemStore, regenerated)
	if err != nil {
		t.Fatalf("Upsert (after user edit): %v", err)
	}
	// start/end/date/project_path all still match the prior candidate, so
	// nothing actually changed once user-modified fields are restored.
	if res.Created || res.Updated {
		t.Errorf("Result = %+v, want no-op once user_modified fields are restored", res)
	}

	got, err := itemStore.FindBySourceID("user-1", "claude_code", "claude-sess-4-2024-03-15")
	if err != nil {
		t.Fatalf("FindBySourceID: %v", err)
	}
	if got.Hours != 2.5 || got.Title != "manually corrected title" {
		t.Errorf("got = %+v, want user-modified fields preserved", got)
	}
	if got.HoursSource != model.HoursSourceUserModified {
		t.Errorf("HoursSource = %v, want HoursSourceUserModified", got.HoursSource)
	}
}
