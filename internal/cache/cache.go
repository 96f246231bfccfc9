// Package cache is the persistent local store behind the repository views:
// a schema-versioned sqlite file split into mutable records (fingerprint,
// branch snapshots, commit snapshots) that are dropped when a repository's
// state changes, and immutable records (per-commit diffs and file lists)
// that only a full clear removes.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SchemaVersion stamps the sqlite user_version pragma. A store carrying any
// other version is destroyed and rebuilt from scratch; there is no
// migration path for cache data.
const SchemaVersion = 1

var requiredTables = []string{
	"repo_fingerprints",
	"branch_snapshots",
	"commit_snapshots",
	"diff_records",
	"file_list_records",
}

type Options struct {
	Logger *slog.Logger
}

// Store owns the sqlite handle. Constructing one performs no I/O; the
// file is opened lazily by Init or by the first record operation.
type Store struct {
	path    string
	logger  *slog.Logger
	metrics *cacheMetrics

	mu      sync.Mutex
	db      *sql.DB
	openErr error
}

func New(path string, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:    path,
		logger:  logger,
		metrics: getDefaultCacheMetrics(),
	}
}

// Init opens the store, creating or repairing the schema as needed. It is
// idempotent and safe to call concurrently: the open sequence runs at most
// once, and every caller observes its outcome. A failed open is terminal
// for this Store; callers are expected to fall back to fetching from the
// repository directly.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.ensureOpen(ctx)
	return err
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the sqlite file location the store was built with.
func (s *Store) Path() string { return s.path }

func (s *Store) ensureOpen(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	db, err := s.openLocked(ctx)
	if err != nil {
		s.openErr = fmt.Errorf("open cache: %w", err)
		return nil, s.openErr
	}
	s.db = db
	return s.db, nil
}

// openLocked runs the full open sequence: connect, inspect the existing
// schema, and either adopt it, create it fresh, or destroy a mismatched
// store and recreate it. Called with s.mu held.
func (s *Store) openLocked(ctx context.Context) (*sql.DB, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := s.connect()
	if err != nil {
		return nil, err
	}

	version, existing, err := inspectSchema(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	// A populated store whose version or table set does not match is
	// unrecoverable: partial migration is never attempted. Mutable and
	// immutable data alike are sacrificed.
	if (version != 0 || len(existing) > 0) && (version != SchemaVersion || len(missingTables(existing)) > 0) {
		s.logger.Warn("cache schema mismatch, recreating store",
			"path", s.path,
			"found_version", version,
			"want_version", SchemaVersion,
			"missing_tables", missingTables(existing),
		)
		s.metrics.schemaRecreations.Inc()
		db.Close()
		if err := s.removeStoreFiles(); err != nil {
			return nil, err
		}
		db, err = s.connect()
		if err != nil {
			return nil, err
		}
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) connect() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *Store) removeStoreFiles() error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", s.path+suffix, err)
		}
	}
	return nil
}

// Reset destroys the store and recreates an empty schema. The next record
// operation reopens it.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.openErr = nil
	if err := s.removeStoreFiles(); err != nil {
		return err
	}
	s.logger.Warn("cache store reset, all cached data discarded", "path", s.path)
	s.metrics.schemaRecreations.Inc()

	db, err := s.openLocked(ctx)
	if err != nil {
		s.openErr = fmt.Errorf("open cache: %w", err)
		return s.openErr
	}
	s.db = db
	return nil
}

func inspectSchema(ctx context.Context, db *sql.DB) (version int, tables map[string]bool, err error) {
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, nil, fmt.Errorf("read user_version: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return 0, nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables = make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, nil, err
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return version, tables, nil
}

func missingTables(existing map[string]bool) []string {
	var missing []string
	for _, name := range requiredTables {
		if !existing[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func createSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS repo_fingerprints (
	repo_id TEXT PRIMARY KEY,
	head_ref TEXT NOT NULL,
	refs_hash TEXT NOT NULL,
	last_accessed DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS branch_snapshots (
	repo_id TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS commit_snapshots (
	repo_id TEXT NOT NULL,
	branch TEXT NOT NULL,
	mode TEXT NOT NULL,
	payload BLOB NOT NULL,
	commit_count INTEGER NOT NULL DEFAULT 0,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (repo_id, branch, mode)
);

CREATE TABLE IF NOT EXISTS diff_records (
	repo_id TEXT NOT NULL,
	commit_id TEXT NOT NULL,
	path TEXT NOT NULL,
	payload BLOB NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (repo_id, commit_id, path)
);

CREATE TABLE IF NOT EXISTS file_list_records (
	repo_id TEXT NOT NULL,
	commit_id TEXT NOT NULL,
	payload BLOB NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (repo_id, commit_id)
);
`

func isMissingTableErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}
