package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, authorEmail string, when time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("update "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Tester", Email: authorEmail, When: when},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCommitsInRangeFiltersByTimeAndAuthor(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	base := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	commitFile(t, repo, dir, "a.txt", "one", "dev@example.com", base)
	commitFile(t, repo, dir, "b.txt", "two", "dev@example.com", base.Add(30*time.Minute))
	commitFile(t, repo, dir, "c.txt", "three", "other@example.com", base.Add(time.Hour))
	commitFile(t, repo, dir, "d.txt", "four", "dev@example.com", base.Add(3*time.Hour))

	h := New()

	commits, err := h.CommitsInRange(dir, base, base.Add(2*time.Hour), "")
	if err != nil {
		t.Fatalf("CommitsInRange: %v", err)
	}
	if len(commits) != 3 {
		t.Fatalf("commits = %+v, want 3", commits)
	}

	filtered, err := h.CommitsInRange(dir, base, base.Add(2*time.Hour), "dev@example.com")
	if err != nil {
		t.Fatalf("CommitsInRange with author: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("filtered = %+v, want 2", filtered)
	}
	for _, c := range filtered {
		if c.Subject == "" || c.Hash == "" {
			t.Errorf("commit missing fields: %+v", c)
		}
	}
}

func TestCommitsInRangeReturnsEmptyForNonRepo(t *testing.T) {
	h := New()
	commits, err := h.CommitsInRange(t.TempDir(), time.Now().Add(-time.Hour), time.Now(), "")
	if err != nil {
		t.Fatalf("expected nil error for non-repo path, got %v", err)
	}
	if commits != nil {
		t.Errorf("expected nil commits, got %+v", commits)
	}
}

func TestGetGitUserEmailReadsRepoConfig(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	cfg.User.Email = "configured@example.com"
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	h := New()
	if got := h.GetGitUserEmail(dir); got != "configured@example.com" {
		t.Errorf("GetGitUserEmail = %q, want configured@example.com", got)
	}
}

func TestGetGitUserEmailEmptyForNonRepo(t *testing.T) {
	h := New()
	if got := h.GetGitUserEmail(t.TempDir()); got != "" {
		t.Errorf("GetGitUserEmail = %q, want empty", got)
	}
}
