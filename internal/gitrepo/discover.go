package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

// DiscoverRepos lists the repositories a root exposes: the root itself
// when it carries a .git entry, plus every direct child directory with
// one. The entry may be a directory or a worktree/submodule file; both
// spellings mark a repository. The repo id
// is the absolute path; every cache record keys off it. An unreadable
// root is an error unless the root itself is a repository.
func DiscoverRepos(root string) ([]models.Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repos root: %w", err)
	}

	repos := []models.Repo{}
	_, err = os.Stat(filepath.Join(abs, ".git"))
	rootIsRepo := err == nil
	if rootIsRepo {
		repos = append(repos, models.Repo{ID: abs, Name: filepath.Base(abs)})
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if rootIsRepo {
			return repos, nil
		}
		return nil, fmt.Errorf("read repos root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(abs, entry.Name())
		if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
			repos = append(repos, models.Repo{ID: path, Name: entry.Name()})
		}
	}
	return repos, nil
}

var repoNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_.\\/-]`)

// ResolveRepoPath maps a client-supplied repository identifier onto the
// filesystem. Absolute identifiers are trusted as-is; discovery hands
// them out and the backend only ever serves a local client. Relative
// names are stripped to a conservative character set and joined under
// the configured root.
func ResolveRepoPath(repo, root string) string {
	if filepath.IsAbs(repo) {
		return filepath.Clean(repo)
	}
	safe := repoNamePattern.ReplaceAllString(repo, "")
	return filepath.Join(root, safe)
}
