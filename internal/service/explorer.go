// Package service sits between the HTTP layer and the repository backend.
// Explorer answers every read the frontend issues, consulting the
// persistent cache before touching git and keeping the cache trustworthy
// through repository state fingerprints.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gitexplorer/gitexplorer/internal/cache"
	"github.com/gitexplorer/gitexplorer/internal/gitrepo"
	"github.com/gitexplorer/gitexplorer/internal/models"
)

// Cache is the persistence surface Explorer consumes. *cache.Store
// implements it. A nil Cache turns every read into a direct git fetch.
type Cache interface {
	Fingerprint(ctx context.Context, repoID string) (*cache.Fingerprint, error)
	SaveFingerprint(ctx context.Context, repoID, headRef, refsHash string) error
	InvalidateRepo(ctx context.Context, repoID string) cache.InvalidationResult

	Branches(ctx context.Context, repoID string) (*models.BranchInfo, error)
	SaveBranches(ctx context.Context, repoID string, info *models.BranchInfo) error
	Commits(ctx context.Context, repoID, branch, mode string) ([]models.Commit, error)
	SaveCommits(ctx context.Context, repoID, branch, mode string, commits []models.Commit) error

	Diff(ctx context.Context, repoID, commitID, path string) (*models.DiffResponse, error)
	SaveDiff(ctx context.Context, repoID, commitID, path string, diff *models.DiffResponse) error
	Files(ctx context.Context, repoID, commitID string) ([]models.FileChange, error)
	SaveFiles(ctx context.Context, repoID, commitID string, files []models.FileChange) error
}

// The aggregated all-branches view caches under an empty branch
// component. Per-branch walks always carry a real branch name (an empty
// request defaults to HEAD before the key is formed), so no branch —
// including one literally named "all" — can collide with it.
const allBranchesKey = ""

type ExplorerOptions struct {
	Cache       Cache
	CommitLimit int
	StatusTTL   time.Duration
	Logger      *slog.Logger
}

type Explorer struct {
	root        string
	commitLimit int
	cache       Cache
	status      *StatusCache
	logger      *slog.Logger
	flights     singleflight.Group
}

func NewExplorer(root string, opts ExplorerOptions) *Explorer {
	limit := opts.CommitLimit
	if limit <= 0 {
		limit = gitrepo.DefaultCommitLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{
		root:        root,
		commitLimit: limit,
		cache:       opts.Cache,
		status:      NewStatusCache(opts.StatusTTL),
		logger:      logger,
	}
}

// ReposRoot returns the configured repository root directory.
func (e *Explorer) ReposRoot() string { return e.root }

// Repos lists the repositories under the configured root.
func (e *Explorer) Repos(ctx context.Context) ([]models.Repo, error) {
	return gitrepo.DiscoverRepos(e.root)
}

func (e *Explorer) open(repoID string) (*gitrepo.Repository, error) {
	return gitrepo.Open(gitrepo.ResolveRepoPath(repoID, e.root))
}

// consultCache reports whether the mutable records for repoID are still
// trustworthy. A stored fingerprint that no longer matches the live
// repository purges the repo's mutable records first, so a subsequent
// refetch starts from a clean slate. Immutable records are untouched.
func (e *Explorer) consultCache(ctx context.Context, repoID, headRef, refsHash string) bool {
	if e.cache == nil {
		return false
	}
	fp, err := e.cache.Fingerprint(ctx, repoID)
	if err != nil || fp == nil {
		return false
	}
	if fp.HeadRef == headRef && fp.RefsHash == refsHash {
		return true
	}
	if result := e.cache.InvalidateRepo(ctx, repoID); !result.Clean() {
		e.logger.Warn("stale cache invalidation incomplete", "repo", repoID)
	}
	return false
}

// saveSnapshot persists a freshly fetched mutable record. The fingerprint
// is written last so trust is only established once the snapshot row is
// in place. Write failures degrade to a warning; the caller already holds
// the fresh data.
func (e *Explorer) saveSnapshot(ctx context.Context, repoID, headRef, refsHash string, save func() error) {
	if e.cache == nil {
		return
	}
	if err := save(); err != nil {
		e.logger.Warn("cache write failed", "repo", repoID, "error", err)
		return
	}
	if err := e.cache.SaveFingerprint(ctx, repoID, headRef, refsHash); err != nil {
		e.logger.Warn("cache fingerprint write failed", "repo", repoID, "error", err)
	}
}

// Branches returns the branch picker payload for a repository, cached
// until the repository fingerprint changes.
func (e *Explorer) Branches(ctx context.Context, repoID string) (*models.BranchInfo, error) {
	v, err, _ := e.flights.Do(flightKey("branches", repoID), func() (any, error) {
		repo, err := e.open(repoID)
		if err != nil {
			return nil, err
		}
		headRef, refsHash, err := repo.Fingerprint()
		if err != nil {
			return nil, err
		}
		if e.consultCache(ctx, repoID, headRef, refsHash) {
			if cached, err := e.cache.Branches(ctx, repoID); err == nil && cached != nil {
				return cached, nil
			}
		}
		info, err := repo.BranchInfo(ctx)
		if err != nil {
			return nil, err
		}
		e.saveSnapshot(ctx, repoID, headRef, refsHash, func() error {
			return e.cache.SaveBranches(ctx, repoID, info)
		})
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.BranchInfo), nil
}

// Commits returns one branch's history page. The branch defaults to HEAD
// and the mode to full; both pass through into the cache key unchanged,
// so distinct listing strategies cache independently.
func (e *Explorer) Commits(ctx context.Context, repoID, branch, mode string, limit int) ([]models.Commit, error) {
	if branch == "" {
		branch = "HEAD"
	}
	if mode == "" {
		mode = models.ModeFull
	}
	if limit <= 0 {
		limit = e.commitLimit
	}
	v, err, _ := e.flights.Do(flightKey("commits", repoID, branch, mode), func() (any, error) {
		repo, err := e.open(repoID)
		if err != nil {
			return nil, err
		}
		headRef, refsHash, err := repo.Fingerprint()
		if err != nil {
			return nil, err
		}
		if e.consultCache(ctx, repoID, headRef, refsHash) {
			if cached, err := e.cache.Commits(ctx, repoID, branch, mode); err == nil && cached != nil {
				return cached, nil
			}
		}
		commits, err := repo.Commits(ctx, branch, mode, limit)
		if err != nil {
			return nil, err
		}
		e.saveSnapshot(ctx, repoID, headRef, refsHash, func() error {
			return e.cache.SaveCommits(ctx, repoID, branch, mode, commits)
		})
		return commits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Commit), nil
}

// AllBranchesCommits returns the aggregated multi-branch history, cached
// under its own branch/mode pair.
func (e *Explorer) AllBranchesCommits(ctx context.Context, repoID string, limit int) ([]models.Commit, error) {
	if limit <= 0 {
		limit = e.commitLimit
	}
	v, err, _ := e.flights.Do(flightKey("commits", repoID, allBranchesKey, models.ModeAll), func() (any, error) {
		repo, err := e.open(repoID)
		if err != nil {
			return nil, err
		}
		headRef, refsHash, err := repo.Fingerprint()
		if err != nil {
			return nil, err
		}
		if e.consultCache(ctx, repoID, headRef, refsHash) {
			if cached, err := e.cache.Commits(ctx, repoID, allBranchesKey, models.ModeAll); err == nil && cached != nil {
				return cached, nil
			}
		}
		commits, err := repo.AllBranchesCommits(ctx, limit)
		if err != nil {
			return nil, err
		}
		e.saveSnapshot(ctx, repoID, headRef, refsHash, func() error {
			return e.cache.SaveCommits(ctx, repoID, allBranchesKey, models.ModeAll, commits)
		})
		return commits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Commit), nil
}

// Diff returns one file's diff within a commit. Diffs are immutable, so
// the cache is consulted without any fingerprint check, but only for
// fully resolved commit ids; symbolic refs would pin moving content under
// a fixed key.
func (e *Explorer) Diff(ctx context.Context, repoID, commitID, path string) (*models.DiffResponse, error) {
	commitID = gitrepo.NormalizeSHA(strings.TrimSpace(commitID))
	addressable := gitrepo.IsFullSHA(commitID)
	if e.cache != nil && addressable {
		if cached, err := e.cache.Diff(ctx, repoID, commitID, path); err == nil && cached != nil {
			return cached, nil
		}
	}
	repo, err := e.open(repoID)
	if err != nil {
		return nil, err
	}
	resp, err := repo.Diff(ctx, commitID, path)
	if err != nil {
		return nil, err
	}
	if e.cache != nil && addressable {
		if err := e.cache.SaveDiff(ctx, repoID, commitID, path, resp); err != nil {
			e.logger.Warn("diff cache write failed", "repo", repoID, "commit", commitID, "error", err)
		}
	}
	return resp, nil
}

// CommitFiles returns the file list of a commit, cached like diffs.
func (e *Explorer) CommitFiles(ctx context.Context, repoID, commitID string) ([]models.FileChange, error) {
	commitID = gitrepo.NormalizeSHA(strings.TrimSpace(commitID))
	addressable := gitrepo.IsFullSHA(commitID)
	if e.cache != nil && addressable {
		if cached, err := e.cache.Files(ctx, repoID, commitID); err == nil && cached != nil {
			return cached, nil
		}
	}
	repo, err := e.open(repoID)
	if err != nil {
		return nil, err
	}
	files, err := repo.Files(ctx, commitID)
	if err != nil {
		return nil, err
	}
	if e.cache != nil && addressable {
		if err := e.cache.SaveFiles(ctx, repoID, commitID, files); err != nil {
			e.logger.Warn("file list cache write failed", "repo", repoID, "commit", commitID, "error", err)
		}
	}
	return files, nil
}

// Tags lists a repository's tags. Tag listings are cheap and uncached.
func (e *Explorer) Tags(ctx context.Context, repoID string) ([]models.Tag, error) {
	repo, err := e.open(repoID)
	if err != nil {
		return nil, err
	}
	return repo.Tags(ctx)
}

// Status reads the worktree status, memoized for a short window so rapid
// UI polling does not hammer git.
func (e *Explorer) Status(ctx context.Context, repoID string) (*models.StatusResponse, error) {
	return e.status.Get(repoID, func() (*models.StatusResponse, error) {
		repo, err := e.open(repoID)
		if err != nil {
			return nil, err
		}
		return repo.Status()
	})
}

func flightKey(parts ...string) string {
	return strings.Join(parts, "\x00")
}
