// Package git harvests commit history for a work item's time range (spec
// §4.4, §6), implementing claudecode.GitHarvester over go-git/v5. Per spec,
// harvesting is best-effort: any error (not a repo, detached HEAD with no
// commits, I/O failure) returns an empty result rather than propagating.
package git

import (
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/wilbur182/recap/internal/core/model"
)

// Harvester reads commits from a local repository checkout.
type Harvester struct{}

// New builds a Harvester. It carries no state; repos are opened per call.
func New() *Harvester { return &Harvester{} }

// CommitsInRange walks the current branch's history and returns every
// commit authored in [start, end), optionally filtered to authorEmail. Any
// failure to open the repository or walk its log yields (nil, nil): commit
// harvesting augments a work item, it never blocks ingestion on it.
func (h *Harvester) CommitsInRange(repoPath string, start, end time.Time, authorEmail string) ([]model.Commit, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, nil
	}
	head, err := repo.Head()
	if err != nil {
		return nil, nil
	}
	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, nil
	}
	defer commitIter.Close()

	var commits []model.Commit
	err = commitIter.ForEach(func(c *object.Commit) error {
		when := c.Author.When
		if when.Before(start) {
			// Log walks newest-first; once we're before the window we're done.
			return storer.ErrStop
		}
		if !when.Before(end) {
			return nil
		}
		if authorEmail != "" && !strings.EqualFold(c.Author.Email, authorEmail) {
			return nil
		}
		commits = append(commits, model.Commit{
			Hash:         c.Hash.String()[:8],
			Subject:      firstLine(c.Message),
			Timestamp:    when,
			FilesChanged: changedFiles(c),
		})
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, nil
	}
	return commits, nil
}

// GetGitUserEmail reads the repository's configured author email, falling
// back to the global git config the way the teacher's GetGitAuthorFromRepo
// does for its own author lookups. Returns "" if neither is set.
func (h *Harvester) GetGitUserEmail(repoPath string) string {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	// ConfigScoped(GlobalScope) merges the global config under the
	// repository's own, so a repository-level email wins.
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return ""
	}
	return cfg.User.Email
}

func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}

func changedFiles(c *object.Commit) []string {
	parent, err := c.Parent(0)
	if err != nil {
		// Root commit: every file in the tree counts as changed.
		tree, terr := c.Tree()
		if terr != nil {
			return nil
		}
		var files []string
		tree.Files().ForEach(func(f *object.File) error {
			files = append(files, f.Name)
			return nil
		})
		return files
	}
	patch, err := parent.Patch(c)
	if err != nil {
		return nil
	}
	var files []string
	for _, fp := range patch.FilePatches() {
		_, to := fp.Files()
		if to != nil {
			files = append(files, to.Path())
			continue
		}
		from, _ := fp.Files()
		if from != nil {
			files = append(files, from.Path())
		}
	}
	return files
}
