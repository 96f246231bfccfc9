package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// InvalidationResult reports the per-step outcome of InvalidateRepo. The
// sweep always runs to completion; a non-nil step error means that table
// may still hold stale rows for the repository.
type InvalidationResult struct {
	Fingerprint error
	Branches    error
	Commits     error
}

// Clean reports whether every invalidation step succeeded.
func (r InvalidationResult) Clean() bool {
	return r.Fingerprint == nil && r.Branches == nil && r.Commits == nil
}

// InvalidateRepo removes the fingerprint, branch snapshot, and all commit
// snapshots for repoID. Diff and file-list records are content-addressed
// by commit and stay valid, so they are left untouched. The three deletes
// run in a single transaction; if the transaction cannot complete, each
// table is swept independently so as much stale data as possible still
// goes away, and the result records which steps failed.
func (s *Store) InvalidateRepo(ctx context.Context, repoID string) InvalidationResult {
	s.metrics.invalidations.Inc()

	db, err := s.ensureOpen(ctx)
	if err != nil {
		return InvalidationResult{Fingerprint: err, Branches: err, Commits: err}
	}

	if err := s.invalidateTx(ctx, db, repoID); err == nil {
		return InvalidationResult{}
	}

	var res InvalidationResult
	if _, err := db.ExecContext(ctx, `DELETE FROM repo_fingerprints WHERE repo_id = ?`, repoID); err != nil {
		res.Fingerprint = fmt.Errorf("delete fingerprint: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM branch_snapshots WHERE repo_id = ?`, repoID); err != nil {
		res.Branches = fmt.Errorf("delete branch snapshot: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM commit_snapshots WHERE repo_id = ?`, repoID); err != nil {
		res.Commits = fmt.Errorf("delete commit snapshots: %w", err)
	}
	if !res.Clean() {
		s.logger.Warn("repo invalidation incomplete",
			"repo", repoID,
			"fingerprint_err", res.Fingerprint,
			"branches_err", res.Branches,
			"commits_err", res.Commits,
		)
	}
	return res
}

func (s *Store) invalidateTx(ctx context.Context, db *sql.DB, repoID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM repo_fingerprints WHERE repo_id = ?`,
		`DELETE FROM branch_snapshots WHERE repo_id = ?`,
		`DELETE FROM commit_snapshots WHERE repo_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, repoID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Stats summarizes store contents for the cache admin endpoint.
type Stats struct {
	Fingerprints       int64 `json:"fingerprints"`
	BranchSnapshots    int64 `json:"branchSnapshots"`
	CommitSnapshots    int64 `json:"commitSnapshots"`
	DiffRecords        int64 `json:"diffRecords"`
	FileListRecords    int64 `json:"fileListRecords"`
	TotalCommitsCached int64 `json:"totalCommitsCached"`
}

// Stats counts the rows in every table plus the total number of commits
// held across all commit snapshots.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	for _, c := range []struct {
		table string
		dst   *int64
	}{
		{"repo_fingerprints", &stats.Fingerprints},
		{"branch_snapshots", &stats.BranchSnapshots},
		{"commit_snapshots", &stats.CommitSnapshots},
		{"diff_records", &stats.DiffRecords},
		{"file_list_records", &stats.FileListRecords},
	} {
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(commit_count), 0) FROM commit_snapshots`,
	).Scan(&stats.TotalCommitsCached)
	if err != nil {
		return nil, fmt.Errorf("sum commit counts: %w", err)
	}
	return stats, nil
}

// ClearAll deletes every mutable record, and the immutable diff and
// file-list records as well when includeImmutable is set.
func (s *Store) ClearAll(ctx context.Context, includeImmutable bool) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	tables := []string{"repo_fingerprints", "branch_snapshots", "commit_snapshots"}
	if includeImmutable {
		tables = append(tables, "diff_records", "file_list_records")
	}
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			if isMissingTableErr(err) {
				s.logger.Warn("cache table missing, clear skipped", "table", table)
				continue
			}
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Ping verifies the store is open and the underlying database responds.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.ensureOpen(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
