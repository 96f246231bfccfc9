package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

// Fingerprint is the recorded head/refs state for one repository. Branch
// and commit snapshots may only be trusted while the stored fingerprint
// matches the repository's observed state.
type Fingerprint struct {
	RepoID       string
	HeadRef      string
	RefsHash     string
	LastAccessed time.Time
}

// readMiss converts a failed read into a miss. sql.ErrNoRows is the
// ordinary cold-cache case; anything else is logged and counted as a read
// error, then still reported as a miss so a damaged store can never break
// a repository view.
func (s *Store) readMiss(table string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.misses.WithLabelValues(table).Inc()
	case isMissingTableErr(err):
		s.metrics.readErrors.WithLabelValues(table).Inc()
		s.logger.Warn("cache table missing, treating read as miss", "table", table)
	default:
		s.metrics.readErrors.WithLabelValues(table).Inc()
		s.logger.Warn("cache read failed, treating as miss", "table", table, "error", err)
	}
	return nil
}

// Fingerprint returns the stored fingerprint for repoID, or nil on a miss.
func (s *Store) Fingerprint(ctx context.Context, repoID string) (*Fingerprint, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	fp := &Fingerprint{RepoID: repoID}
	err = db.QueryRowContext(ctx,
		`SELECT head_ref, refs_hash, last_accessed FROM repo_fingerprints WHERE repo_id = ?`,
		repoID,
	).Scan(&fp.HeadRef, &fp.RefsHash, &fp.LastAccessed)
	if err != nil {
		return nil, s.readMiss("repo_fingerprints", err)
	}
	s.metrics.hits.WithLabelValues("repo_fingerprints").Inc()
	return fp, nil
}

// SaveFingerprint records the current head/refs state for repoID,
// replacing any previous fingerprint and bumping last_accessed.
func (s *Store) SaveFingerprint(ctx context.Context, repoID, headRef, refsHash string) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO repo_fingerprints (repo_id, head_ref, refs_hash, last_accessed)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		repoID, headRef, refsHash,
	)
	if err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return nil
}

// IsFresh reports whether mutable snapshots for repoID may be trusted:
// true only when a fingerprint exists and both the head ref and the refs
// hash match exactly. It is a pure read and does not touch last_accessed.
func (s *Store) IsFresh(ctx context.Context, repoID, headRef, refsHash string) (bool, error) {
	fp, err := s.Fingerprint(ctx, repoID)
	if err != nil {
		return false, err
	}
	if fp == nil {
		return false, nil
	}
	return fp.HeadRef == headRef && fp.RefsHash == refsHash, nil
}

// Branches returns the cached branch snapshot for repoID, or nil on a
// miss. Callers must check freshness separately via IsFresh.
func (s *Store) Branches(ctx context.Context, repoID string) (*models.BranchInfo, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM branch_snapshots WHERE repo_id = ?`, repoID,
	).Scan(&payload)
	if err != nil {
		return nil, s.readMiss("branch_snapshots", err)
	}
	info := &models.BranchInfo{}
	if err := decodePayload(payload, info); err != nil {
		return nil, s.readMiss("branch_snapshots", err)
	}
	s.metrics.hits.WithLabelValues("branch_snapshots").Inc()
	return info, nil
}

// SaveBranches stores the branch snapshot for repoID, replacing any
// previous snapshot.
func (s *Store) SaveBranches(ctx context.Context, repoID string, info *models.BranchInfo) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	payload, err := encodePayload(info)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO branch_snapshots (repo_id, payload, cached_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)`,
		repoID, payload,
	)
	if err != nil {
		return fmt.Errorf("save branches: %w", err)
	}
	return nil
}

// Commits returns the cached commit page for the (repoID, branch, mode)
// key, or nil on a miss. A cached empty page comes back as a non-nil
// empty slice so callers can tell it apart from a miss.
func (s *Store) Commits(ctx context.Context, repoID, branch, mode string) ([]models.Commit, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM commit_snapshots WHERE repo_id = ? AND branch = ? AND mode = ?`,
		repoID, branch, mode,
	).Scan(&payload)
	if err != nil {
		return nil, s.readMiss("commit_snapshots", err)
	}
	var commits []models.Commit
	if err := decodePayload(payload, &commits); err != nil {
		return nil, s.readMiss("commit_snapshots", err)
	}
	if commits == nil {
		commits = []models.Commit{}
	}
	s.metrics.hits.WithLabelValues("commit_snapshots").Inc()
	return commits, nil
}

// SaveCommits stores a commit page under the (repoID, branch, mode) key,
// replacing any previous page and recording the commit count for stats.
func (s *Store) SaveCommits(ctx context.Context, repoID, branch, mode string, commits []models.Commit) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if commits == nil {
		commits = []models.Commit{}
	}
	payload, err := encodePayload(commits)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO commit_snapshots (repo_id, branch, mode, payload, commit_count, cached_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		repoID, branch, mode, payload, len(commits),
	)
	if err != nil {
		return fmt.Errorf("save commits: %w", err)
	}
	return nil
}

// Diff returns the cached diff for a commit/path pair, or nil on a miss.
// Diff records are immutable, so no freshness check applies.
func (s *Store) Diff(ctx context.Context, repoID, commitID, path string) (*models.DiffResponse, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM diff_records WHERE repo_id = ? AND commit_id = ? AND path = ?`,
		repoID, commitID, path,
	).Scan(&payload)
	if err != nil {
		return nil, s.readMiss("diff_records", err)
	}
	diff := &models.DiffResponse{}
	if err := decodePayload(payload, diff); err != nil {
		return nil, s.readMiss("diff_records", err)
	}
	s.metrics.hits.WithLabelValues("diff_records").Inc()
	return diff, nil
}

// SaveDiff stores a diff record if the key is not already present. Diff
// content is derived from immutable commit data, so an existing record is
// kept as-is and re-saving is a no-op.
func (s *Store) SaveDiff(ctx context.Context, repoID, commitID, path string, diff *models.DiffResponse) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	payload, err := encodePayload(diff)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO diff_records (repo_id, commit_id, path, payload, cached_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		repoID, commitID, path, payload,
	)
	if err != nil {
		if isMissingTableErr(err) {
			s.logger.Warn("diff table missing, cache write skipped", "repo", repoID)
			return nil
		}
		return fmt.Errorf("save diff: %w", err)
	}
	return nil
}

// Files returns the cached file list for a commit, or nil on a miss. An
// empty commit comes back as a non-nil empty slice.
func (s *Store) Files(ctx context.Context, repoID, commitID string) ([]models.FileChange, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM file_list_records WHERE repo_id = ? AND commit_id = ?`,
		repoID, commitID,
	).Scan(&payload)
	if err != nil {
		return nil, s.readMiss("file_list_records", err)
	}
	var files []models.FileChange
	if err := decodePayload(payload, &files); err != nil {
		return nil, s.readMiss("file_list_records", err)
	}
	if files == nil {
		files = []models.FileChange{}
	}
	s.metrics.hits.WithLabelValues("file_list_records").Inc()
	return files, nil
}

// SaveFiles stores the changed-file list for a commit if the key is not
// already present. Like diffs, file lists are immutable once written.
func (s *Store) SaveFiles(ctx context.Context, repoID, commitID string, files []models.FileChange) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	if files == nil {
		files = []models.FileChange{}
	}
	payload, err := encodePayload(files)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO file_list_records (repo_id, commit_id, payload, cached_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		repoID, commitID, payload,
	)
	if err != nil {
		if isMissingTableErr(err) {
			s.logger.Warn("file list table missing, cache write skipped", "repo", repoID)
			return nil
		}
		return fmt.Errorf("save files: %w", err)
	}
	return nil
}
