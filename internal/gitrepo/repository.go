// Package gitrepo is the read-only repository backend: branch and tag
// enumeration, commit walking, per-commit diffs and file lists, and
// worktree status, all on top of go-git. It never mutates a repository.
package gitrepo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

// Branches older than this at the tip are flagged stale.
const branchStaleAfter = 90 * 24 * time.Hour

// Repository wraps one opened git repository. Instances are cheap to open
// and are not safe for concurrent walks; open one per goroutine.
type Repository struct {
	path string
	repo *git.Repository
}

func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repository{path: path, repo: repo}, nil
}

func (r *Repository) Path() string { return r.path }

// HeadRef identifies what HEAD points at: the full branch ref name while a
// branch is checked out (born or not), or the commit id when detached.
// Combined with the refs hash this pins every repository state a cached
// snapshot depends on.
func (r *Repository) HeadRef() (string, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference {
		return string(ref.Target()), nil
	}
	return ref.Hash().String(), nil
}

// RefsHash digests every branch and tag tip as sorted "name sha" lines, so
// any ref moving, appearing, or disappearing changes the digest even when
// HEAD itself is untouched.
func (r *Repository) RefsHash() (string, error) {
	refs, err := r.repo.References()
	if err != nil {
		return "", fmt.Errorf("list references: %w", err)
	}
	var lines []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		if !name.IsBranch() && !name.IsRemote() && !name.IsTag() {
			return nil
		}
		lines = append(lines, string(name)+" "+ref.Hash().String())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("iterate references: %w", err)
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint returns the (headRef, refsHash) pair the cache validator
// compares against stored fingerprints.
func (r *Repository) Fingerprint() (headRef, refsHash string, err error) {
	headRef, err = r.HeadRef()
	if err != nil {
		return "", "", err
	}
	refsHash, err = r.RefsHash()
	if err != nil {
		return "", "", err
	}
	return headRef, refsHash, nil
}

// branchTips enumerates local and remote branch tips by short name,
// skipping remote HEAD pointers.
func (r *Repository) branchTips() (map[string]plumbing.Hash, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	tips := make(map[string]plumbing.Hash)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		if !name.IsBranch() && !name.IsRemote() {
			return nil
		}
		short := name.Short()
		if name.IsRemote() && strings.HasSuffix(short, "/HEAD") {
			return nil
		}
		tips[short] = ref.Hash()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return tips, nil
}

// BranchInfo assembles the branch picker payload: current branch, sorted
// branch names, per-branch metadata, head commit id, and the refs hash.
func (r *Repository) BranchInfo(ctx context.Context) (*models.BranchInfo, error) {
	info := &models.BranchInfo{
		Branches:       []string{},
		BranchMetadata: make(map[string]models.BranchMetadata),
	}

	head, headErr := r.repo.Head()
	switch {
	case headErr == nil:
		if head.Name().IsBranch() {
			info.Current = head.Name().Short()
		} else {
			info.Current = "HEAD"
		}
		info.Head = head.Hash().String()
	case errors.Is(headErr, plumbing.ErrReferenceNotFound):
		// Unborn branch: HEAD names a branch with no commits yet.
		if ref, err := r.repo.Reference(plumbing.HEAD, false); err == nil && ref.Type() == plumbing.SymbolicReference {
			info.Current = ref.Target().Short()
			info.BranchMetadata[info.Current] = models.BranchMetadata{IsUnborn: true}
		}
	default:
		return nil, fmt.Errorf("resolve head: %w", headErr)
	}

	tips, err := r.branchTips()
	if err != nil {
		return nil, err
	}
	for name := range tips {
		info.Branches = append(info.Branches, name)
	}
	sort.Strings(info.Branches)

	mainName, mainTip := r.mainTip(tips)
	var mainCommit *object.Commit
	if mainName != "" {
		if c, err := r.repo.CommitObject(mainTip); err == nil {
			mainCommit = c
		}
	}

	staleCutoff := time.Now().Add(-branchStaleAfter)
	for _, name := range info.Branches {
		tip, err := r.repo.CommitObject(tips[name])
		if err != nil {
			continue
		}
		meta := models.BranchMetadata{
			LastCommitDate: tip.Committer.When.UTC().Format(time.RFC3339),
			IsStale:        tip.Committer.When.Before(staleCutoff),
		}
		if mainCommit != nil && name != mainName {
			if merged, err := tip.IsAncestor(mainCommit); err == nil && merged {
				meta.IsMerged = true
			}
		}
		info.BranchMetadata[name] = meta
	}

	refsHash, err := r.RefsHash()
	if err != nil {
		return nil, err
	}
	info.RefsHash = refsHash
	return info, nil
}

// Branch names the frontend treats as the trunk of a repository.
var mainBranchNames = map[string]bool{
	"main":        true,
	"master":      true,
	"develop":     true,
	"development": true,
	"trunk":       true,
}

func isMainLikeBranch(name string) bool {
	short := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		short = name[i+1:]
	}
	return mainBranchNames[short]
}

// Candidate refs checked in order when locating the trunk tip.
var mainRefCandidates = []string{
	"main", "master", "origin/main", "origin/master", "develop", "origin/develop",
}

func (r *Repository) mainTip(tips map[string]plumbing.Hash) (string, plumbing.Hash) {
	for _, name := range mainRefCandidates {
		if hash, ok := tips[name]; ok {
			return name, hash
		}
	}
	return "", plumbing.ZeroHash
}
