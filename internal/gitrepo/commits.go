package gitrepo

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"golang.org/x/sync/errgroup"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

// DefaultCommitLimit bounds a single history page when the caller does not
// ask for a specific limit.
const DefaultCommitLimit = 2000

// Per-branch page bounds for the aggregated all-branches walk. The floor
// keeps repositories with hundreds of branches from degenerating to a
// handful of commits per branch after deduplication; the ceiling keeps a
// single huge branch from dominating the walk time.
const (
	minPerBranchLimit = 50
	maxPerBranchLimit = 500
)

// Commits walks history newest-first from the tip of branch (HEAD when
// empty), up to limit. Full mode annotates each commit with the branch
// tips pointing at it plus head/trunk markers; local mode tags every
// commit with just the requested branch so aggregated views can union
// membership themselves. The mode comparison is case-insensitive.
func (r *Repository) Commits(ctx context.Context, branch, mode string, limit int) ([]models.Commit, error) {
	if limit <= 0 {
		limit = DefaultCommitLimit
	}
	rev := branch
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}

	local := strings.EqualFold(mode, models.ModeLocal)

	var headSHA string
	walkName := branch
	if head, err := r.repo.Head(); err == nil {
		headSHA = head.Hash().String()
		if (walkName == "" || walkName == "HEAD") && head.Name().IsBranch() {
			walkName = head.Name().Short()
		}
	}
	if walkName == "" {
		walkName = "HEAD"
	}

	var tipIndex map[plumbing.Hash][]string
	if !local {
		tips, err := r.branchTips()
		if err != nil {
			return nil, err
		}
		tipIndex = make(map[plumbing.Hash][]string, len(tips))
		for name, tip := range tips {
			tipIndex[tip] = append(tipIndex[tip], name)
		}
		for _, names := range tipIndex {
			sort.Strings(names)
		}
	}

	iter, err := r.repo.Log(&git.LogOptions{From: *hash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", rev, err)
	}
	defer iter.Close()

	commits := []models.Commit{}
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= limit {
			return storer.ErrStop
		}
		commit := newCommit(c)
		commit.IsHead = headSHA != "" && commit.SHA == headSHA
		if local {
			commit.Branches = []string{walkName}
			commit.PrimaryBranch = walkName
			commit.IsMain = isMainLikeBranch(walkName)
		} else {
			names := tipIndex[c.Hash]
			if names == nil {
				names = []string{}
			}
			commit.Branches = names
			commit.PrimaryBranch = pickPrimaryBranch(names, walkName)
			commit.IsMain = anyMainLike(names)
		}
		commits = append(commits, commit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", rev, err)
	}
	return commits, nil
}

func newCommit(c *object.Commit) models.Commit {
	subject := c.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	commit := models.Commit{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		Date:    c.Author.When.UTC().Format(time.RFC3339),
		Message: strings.TrimSpace(subject),
		IsMerge: c.NumParents() > 1,
	}
	for _, parent := range c.ParentHashes {
		commit.Parents = append(commit.Parents, parent.String())
	}
	return commit
}

// pickPrimaryBranch chooses the badge branch for a tip commit: a trunk
// name wins, then the branch being walked, then the first name.
func pickPrimaryBranch(names []string, current string) string {
	if len(names) == 0 {
		return ""
	}
	for _, name := range names {
		if isMainLikeBranch(name) {
			return name
		}
	}
	for _, name := range names {
		if name == current {
			return name
		}
	}
	return names[0]
}

func anyMainLike(names []string) bool {
	for _, name := range names {
		if isMainLikeBranch(name) {
			return true
		}
	}
	return false
}

// AllBranchesCommits merges per-branch local walks across every branch:
// commits deduplicate by id, branch membership is the union of the walks
// that reached them, and the result is newest-first, truncated to limit.
// Walks run concurrently, each on its own repository handle.
func (r *Repository) AllBranchesCommits(ctx context.Context, limit int) ([]models.Commit, error) {
	if limit <= 0 {
		limit = DefaultCommitLimit
	}
	tips, err := r.branchTips()
	if err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return []models.Commit{}, nil
	}
	branches := make([]string, 0, len(tips))
	for name := range tips {
		branches = append(branches, name)
	}
	sort.Strings(branches)

	perBranch := limit / len(branches)
	if perBranch < minPerBranchLimit {
		perBranch = minPerBranchLimit
	}
	if perBranch > maxPerBranchLimit {
		perBranch = maxPerBranchLimit
	}

	var (
		mu         sync.Mutex
		bySHA      = make(map[string]models.Commit)
		membership = make(map[string]map[string]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, branch := range branches {
		g.Go(func() error {
			walker, err := Open(r.path)
			if err != nil {
				return err
			}
			commits, err := walker.Commits(gctx, branch, models.ModeLocal, perBranch)
			if err != nil {
				return fmt.Errorf("branch %s: %w", branch, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, commit := range commits {
				if _, ok := bySHA[commit.SHA]; !ok {
					bySHA[commit.SHA] = commit
					membership[commit.SHA] = make(map[string]bool)
				}
				membership[commit.SHA][branch] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]models.Commit, 0, len(bySHA))
	for sha, commit := range bySHA {
		names := make([]string, 0, len(membership[sha]))
		for name := range membership[sha] {
			names = append(names, name)
		}
		sort.Strings(names)
		commit.Branches = names
		commit.PrimaryBranch = pickPrimaryBranch(names, "")
		commit.IsMain = anyMainLike(names)
		merged = append(merged, commit)
	}
	// RFC3339 UTC date strings order lexicographically.
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date > merged[j].Date
		}
		return merged[i].SHA < merged[j].SHA
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Tags lists tag refs sorted by name. The id is the ref target: the tag
// object for annotated tags, the commit for lightweight ones. Dates come
// from the tagger when annotated, the commit otherwise.
func (r *Repository) Tags(ctx context.Context) ([]models.Tag, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer iter.Close()

	tags := []models.Tag{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tag := models.Tag{Name: ref.Name().Short(), SHA: ref.Hash().String()}
		if obj, err := r.repo.TagObject(ref.Hash()); err == nil {
			tag.Date = obj.Tagger.When.UTC().Format(time.RFC3339)
		} else if c, err := r.repo.CommitObject(ref.Hash()); err == nil {
			tag.Date = c.Author.When.UTC().Format(time.RFC3339)
		}
		tags = append(tags, tag)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}
