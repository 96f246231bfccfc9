package gitrepo

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

var (
	shaPattern     = regexp.MustCompile(`[0-9a-fA-F]{40}`)
	fullSHAPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// NormalizeSHA extracts the first full commit id embedded in s. Clients
// sometimes send decorated revision strings; anything without a full id
// passes through unchanged for ResolveRevision to interpret.
func NormalizeSHA(s string) string {
	if m := shaPattern.FindString(s); m != "" {
		return m
	}
	return s
}

// IsFullSHA reports whether s is a complete 40-character commit id.
func IsFullSHA(s string) bool {
	return fullSHAPattern.MatchString(s)
}

func (r *Repository) resolveCommit(ref string) (*object.Commit, error) {
	if ref == "" {
		ref = "HEAD"
	}
	ref = NormalizeSHA(ref)
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", hash, err)
	}
	return commit, nil
}

// changes diffs a commit against its first parent. Root commits diff
// against the empty tree, so every file shows as an addition.
func (r *Repository) changes(ctx context.Context, commit *object.Commit) (object.Changes, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("parent commit: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("parent tree: %w", err)
		}
	}
	changes, err := object.DiffTreeWithOptions(ctx, parentTree, tree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	return changes, nil
}

// Diff returns the unified diff of one file in commit ref against the
// commit's first parent, as full text plus parsed hunks. A path the commit
// did not touch yields an empty diff rather than an error.
func (r *Repository) Diff(ctx context.Context, ref, path string) (*models.DiffResponse, error) {
	commit, err := r.resolveCommit(ref)
	if err != nil {
		return nil, err
	}
	changes, err := r.changes(ctx, commit)
	if err != nil {
		return nil, err
	}

	var match *object.Change
	for _, change := range changes {
		if change.To.Name == path || change.From.Name == path {
			match = change
			break
		}
	}
	if match == nil {
		return &models.DiffResponse{FilePath: path, Hunks: []models.DiffHunk{}}, nil
	}

	patch, err := match.PatchContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("build patch: %w", err)
	}
	text := patch.String()
	return &models.DiffResponse{
		Diff:     text,
		Hunks:    parseHunks(text),
		FilePath: path,
	}, nil
}

// Files lists the files the commit changed relative to its first parent,
// sorted by path. Renames report the new path.
func (r *Repository) Files(ctx context.Context, ref string) ([]models.FileChange, error) {
	commit, err := r.resolveCommit(ref)
	if err != nil {
		return nil, err
	}
	changes, err := r.changes(ctx, commit)
	if err != nil {
		return nil, err
	}

	files := make([]models.FileChange, 0, len(changes))
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			continue
		}
		fc := models.FileChange{Path: change.To.Name}
		switch {
		case change.From.Name != "" && change.To.Name != "" && change.From.Name != change.To.Name:
			fc.Status = models.ChangeRenamed
		case action == merkletrie.Insert:
			fc.Status = models.ChangeAdded
		case action == merkletrie.Delete:
			fc.Status = models.ChangeRemoved
			fc.Path = change.From.Name
		default:
			fc.Status = models.ChangeModified
		}
		files = append(files, fc)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// parseHunks splits unified diff text into hunks. Header lines before the
// first @@ marker are skipped; lineStart records each hunk's ordinal so
// the frontend can anchor navigation.
func parseHunks(diff string) []models.DiffHunk {
	hunks := []models.DiffHunk{}
	var current *models.DiffHunk
	for _, line := range strings.Split(diff, "\n") {
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			if current != nil {
				hunks = append(hunks, *current)
			}
			current = &models.DiffHunk{
				OldStart:  atoi(m[1], 0),
				OldCount:  atoi(m[2], 1),
				NewStart:  atoi(m[3], 0),
				NewCount:  atoi(m[4], 1),
				Lines:     []string{},
				LineStart: len(hunks),
			}
			continue
		}
		if current == nil {
			continue
		}
		if len(line) > 0 && (line[0] == '+' || line[0] == '-' || line[0] == ' ' || line[0] == '\\') {
			current.Lines = append(current.Lines, line)
		}
	}
	if current != nil {
		hunks = append(hunks, *current)
	}
	return hunks
}

// atoi parses a hunk header count; an omitted count means 1 in unified
// diff notation.
func atoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
