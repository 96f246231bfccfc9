package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "cache.db"), Options{})
	if err := store.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedRepo fills every table with one record for repoID.
func seedRepo(t *testing.T, store *Store, repoID string) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveFingerprint(ctx, repoID, "refs/heads/main", "hash-"+repoID); err != nil {
		t.Fatal(err)
	}
	info := &models.BranchInfo{
		Current:  "main",
		Branches: []string{"main", "origin/main"},
		Head:     "aaaa",
	}
	if err := store.SaveBranches(ctx, repoID, info); err != nil {
		t.Fatal(err)
	}
	commits := []models.Commit{
		{SHA: "aaaa", Author: "Alice", Date: "2026-01-02T10:00:00Z", Message: "init", Branches: []string{"main"}},
	}
	if err := store.SaveCommits(ctx, repoID, "main", models.ModeFull, commits); err != nil {
		t.Fatal(err)
	}
	diff := &models.DiffResponse{Diff: "+package main\n", FilePath: "main.go"}
	if err := store.SaveDiff(ctx, repoID, "aaaa", "main.go", diff); err != nil {
		t.Fatal(err)
	}
	files := []models.FileChange{{Path: "main.go", Status: models.ChangeAdded}}
	if err := store.SaveFiles(ctx, repoID, "aaaa", files); err != nil {
		t.Fatal(err)
	}
}

func TestInitCreatesSchema(t *testing.T) {
	store := newTestStore(t)

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	version, tables, err := inspectSchema(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Fatalf("user_version = %d, want %d", version, SchemaVersion)
	}
	for _, name := range requiredTables {
		if !tables[name] {
			t.Fatalf("table %s missing after init", name)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store := New(path, Options{})
	// No Init: the first record operation opens the file.
	if err := store.SaveFingerprint(ctx, "/repos/web", "refs/heads/main", "hash-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := New(path, Options{})
	defer reopened.Close()
	fp, err := reopened.Fingerprint(ctx, "/repos/web")
	if err != nil {
		t.Fatal(err)
	}
	if fp == nil {
		t.Fatal("expected fingerprint to survive reopen")
	}
	if fp.HeadRef != "refs/heads/main" || fp.RefsHash != "hash-1" {
		t.Fatalf("fingerprint after reopen = %+v", fp)
	}
}

func TestVersionMismatchDestroysStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store := New(path, Options{})
	seedRepo(t, store, "/repos/web")
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	reopened := New(path, Options{})
	defer reopened.Close()
	if err := reopened.Init(ctx); err != nil {
		t.Fatal(err)
	}

	fp, err := reopened.Fingerprint(ctx, "/repos/web")
	if err != nil {
		t.Fatal(err)
	}
	if fp != nil {
		t.Fatalf("fingerprint survived recreation: %+v", fp)
	}
	// Immutable records go down with the store too.
	diff, err := reopened.Diff(ctx, "/repos/web", "aaaa", "main.go")
	if err != nil {
		t.Fatal(err)
	}
	if diff != nil {
		t.Fatalf("diff survived recreation: %+v", diff)
	}
}

func TestMissingTableDestroysStoreOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store := New(path, Options{})
	seedRepo(t, store, "/repos/web")
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec("DROP TABLE file_list_records"); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	reopened := New(path, Options{})
	defer reopened.Close()
	if err := reopened.Init(ctx); err != nil {
		t.Fatal(err)
	}

	raw, err = sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	version, tables, err := inspectSchema(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Fatalf("user_version = %d, want %d", version, SchemaVersion)
	}
	for _, name := range requiredTables {
		if !tables[name] {
			t.Fatalf("table %s missing after repair", name)
		}
	}
	fp, err := reopened.Fingerprint(ctx, "/repos/web")
	if err != nil {
		t.Fatal(err)
	}
	if fp != nil {
		t.Fatalf("fingerprint survived repair: %+v", fp)
	}
}

func TestForeignDatabaseIsRecreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec("CREATE TABLE junk (x INTEGER)"); err != nil {
		t.Fatal(err)
	}
	raw.Close()

	store := New(path, Options{})
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		t.Fatal(err)
	}

	raw, err = sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	_, tables, err := inspectSchema(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if tables["junk"] {
		t.Fatal("foreign table survived recreation")
	}
	for _, name := range requiredTables {
		if !tables[name] {
			t.Fatalf("table %s missing after recreation", name)
		}
	}
}

func TestResetDiscardsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedRepo(t, store, "/repos/web")
	if err := store.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *stats != (Stats{}) {
		t.Fatalf("stats after reset = %+v, want all zero", *stats)
	}

	// The store stays usable.
	if err := store.SaveFingerprint(ctx, "/repos/web", "refs/heads/main", "hash-2"); err != nil {
		t.Fatal(err)
	}
}

func TestOpenFailureIsSticky(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The parent of the cache path is a regular file, so opening can
	// never succeed.
	store := New(filepath.Join(blocker, "cache.db"), Options{})
	ctx := context.Background()

	first := store.Init(ctx)
	if first == nil {
		t.Fatal("expected open to fail")
	}
	if !strings.Contains(first.Error(), "open cache") {
		t.Fatalf("error = %v, want open cache wrap", first)
	}

	if _, err := store.Branches(ctx, "/repos/web"); err == nil {
		t.Fatal("expected read against broken store to error")
	}
	if second := store.Init(ctx); second != first {
		t.Fatalf("open error not sticky: %v vs %v", first, second)
	}

	res := store.InvalidateRepo(ctx, "/repos/web")
	if res.Clean() {
		t.Fatal("expected invalidation steps to fail on broken store")
	}
	if res.Fingerprint == nil || res.Branches == nil || res.Commits == nil {
		t.Fatalf("result = %+v, want every step errored", res)
	}
}
