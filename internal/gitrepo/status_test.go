package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatusClean(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one\n", "init", time.Now().Add(-time.Hour))

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	status, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Files) != 0 {
		t.Fatalf("clean worktree reported %v", status.Files)
	}
}

func TestStatusMapping(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one\n", "init", time.Now().Add(-time.Hour))

	// Unstaged modification.
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\nchanged\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Staged new file.
	if err := os.WriteFile(filepath.Join(dir, "staged.txt"), []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("staged.txt"); err != nil {
		t.Fatal(err)
	}
	// Untracked file.
	if err := os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("loose\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	status, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Files) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(status.Files), status.Files)
	}

	modified := status.Files[0]
	if modified.Path != "a.txt" {
		t.Fatalf("files[0] = %q, want a.txt", modified.Path)
	}
	if modified.Status != " M" || modified.Staged || !modified.Unstaged || modified.Type != "modified" {
		t.Fatalf("a.txt = %+v, want unstaged modification", modified)
	}

	staged := status.Files[1]
	if staged.Path != "staged.txt" {
		t.Fatalf("files[1] = %q, want staged.txt", staged.Path)
	}
	if staged.Status != "A " || !staged.Staged || staged.Unstaged || staged.Type != "added" {
		t.Fatalf("staged.txt = %+v, want staged addition", staged)
	}

	untracked := status.Files[2]
	if untracked.Path != "untracked.txt" {
		t.Fatalf("files[2] = %q, want untracked.txt", untracked.Path)
	}
	if untracked.Status != "??" || untracked.Staged || untracked.Unstaged || untracked.Type != "untracked" {
		t.Fatalf("untracked.txt = %+v, want untracked", untracked)
	}
}

func TestStatusStagedDelete(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "gone.txt", "bye\n", "init", time.Now().Add(-time.Hour))

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Remove("gone.txt"); err != nil {
		t.Fatal(err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	status, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Files) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(status.Files), status.Files)
	}
	f := status.Files[0]
	if f.Path != "gone.txt" || f.Status != "D " || !f.Staged || f.Type != "deleted" {
		t.Fatalf("gone.txt = %+v, want staged deletion", f)
	}
}
