package gitrepo

import (
	"fmt"
	"sort"

	git "github.com/go-git/go-git/v5"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

// Status reads the worktree state in porcelain terms: one entry per
// changed path with the raw two-letter code, staged/unstaged flags, and a
// coarse change type for grouping in the UI.
func (r *Repository) Status() (*models.StatusResponse, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	files := make([]models.StatusFile, 0, len(status))
	for path, fs := range status {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		file := models.StatusFile{
			Path:     path,
			Status:   string([]byte{byte(fs.Staging), byte(fs.Worktree)}),
			Staged:   fs.Staging != git.Unmodified && fs.Staging != git.Untracked,
			Unstaged: fs.Worktree != git.Unmodified && fs.Worktree != git.Untracked,
		}
		switch {
		case fs.Staging == git.Renamed || fs.Worktree == git.Renamed:
			file.Type = "renamed"
			file.OldPath = fs.Extra
		case fs.Staging == git.Added || fs.Worktree == git.Added:
			file.Type = "added"
		case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
			file.Type = "deleted"
		case fs.Staging == git.Untracked || fs.Worktree == git.Untracked:
			file.Type = "untracked"
		default:
			file.Type = "modified"
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return &models.StatusResponse{Files: files}, nil
}
