package gitrepo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

func TestNormalizeSHA(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"60f7f50e5456eb660f9a4c85ad9b4c4aa2df3c2f", "60f7f50e5456eb660f9a4c85ad9b4c4aa2df3c2f"},
		{"commit:60f7f50e5456eb660f9a4c85ad9b4c4aa2df3c2f (HEAD)", "60f7f50e5456eb660f9a4c85ad9b4c4aa2df3c2f"},
		{"main", "main"},
		{"60f7f50e5456eb660f9a4c85ad9b4c4aa2df3c2", "60f7f50e5456eb660f9a4c85ad9b4c4aa2df3c2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSHA(tt.in); got != tt.want {
			t.Errorf("NormalizeSHA(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDiffAgainstParent(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one\ntwo\n", "init", time.Now().Add(-2*time.Hour))
	c2 := commitFile(t, repo, dir, "a.txt", "one\nTWO\nthree\n", "edit", time.Now().Add(-time.Hour))

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := r.Diff(context.Background(), c2.String(), "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if resp.FilePath != "a.txt" {
		t.Fatalf("file path = %q, want a.txt", resp.FilePath)
	}
	if !strings.Contains(resp.Diff, "-two") || !strings.Contains(resp.Diff, "+TWO") {
		t.Fatalf("diff missing expected change:\n%s", resp.Diff)
	}
	if len(resp.Hunks) != 1 {
		t.Fatalf("got %d hunks, want 1", len(resp.Hunks))
	}
	h := resp.Hunks[0]
	if h.OldStart != 1 || h.NewStart != 1 {
		t.Fatalf("hunk starts = -%d +%d, want -1 +1", h.OldStart, h.NewStart)
	}
	if h.LineStart != 0 {
		t.Fatalf("hunk ordinal = %d, want 0", h.LineStart)
	}
	for _, line := range h.Lines {
		if strings.HasPrefix(line, "@@") {
			t.Fatalf("hunk lines must not include the header, got %q", line)
		}
	}
	var sawRemove, sawAdd bool
	for _, line := range h.Lines {
		if line == "-two" {
			sawRemove = true
		}
		if line == "+TWO" {
			sawAdd = true
		}
	}
	if !sawRemove || !sawAdd {
		t.Fatalf("hunk lines = %v, want -two and +TWO", h.Lines)
	}
}

func TestDiffRootCommit(t *testing.T) {
	repo, dir := initRepo(t)
	c1 := commitFile(t, repo, dir, "a.txt", "one\ntwo\n", "init", time.Now().Add(-time.Hour))

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	// Root commits diff against the empty tree, so everything is an addition.
	resp, err := r.Diff(context.Background(), c1.String(), "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Hunks) != 1 {
		t.Fatalf("got %d hunks, want 1", len(resp.Hunks))
	}
	h := resp.Hunks[0]
	if h.OldStart != 0 || h.NewStart != 1 || h.NewCount != 2 {
		t.Fatalf("hunk = -%d,%d +%d,%d, want -0,0 +1,2", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	}
	if !strings.Contains(resp.Diff, "+one") {
		t.Fatalf("diff missing addition:\n%s", resp.Diff)
	}
}

func TestDiffUntouchedPath(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one\n", "init", time.Now().Add(-2*time.Hour))
	c2 := commitFile(t, repo, dir, "a.txt", "one\ntwo\n", "edit", time.Now().Add(-time.Hour))

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	// A path the commit does not touch yields an empty diff, not an error.
	resp, err := r.Diff(context.Background(), c2.String(), "missing.txt")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Diff != "" {
		t.Fatalf("diff = %q, want empty", resp.Diff)
	}
	if len(resp.Hunks) != 0 {
		t.Fatalf("hunks = %v, want none", resp.Hunks)
	}
	if resp.FilePath != "missing.txt" {
		t.Fatalf("file path = %q, want the requested path", resp.FilePath)
	}
}

func TestFilesForCommit(t *testing.T) {
	repo, dir := initRepo(t)
	c1 := commitFile(t, repo, dir, "a.txt", "shared content\n", "init", time.Now().Add(-3*time.Hour))

	// Second commit modifies one file and adds another.
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	commitFile(t, repo, dir, "a.txt", "shared content\nextra\n", "grow", time.Now().Add(-2*time.Hour))
	c2 := commitFile(t, repo, dir, "b.txt", "brand new\n", "add b", time.Now().Add(-2*time.Hour))

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	files, err := r.Files(context.Background(), c1.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "a.txt" || files[0].Status != models.ChangeAdded {
		t.Fatalf("root commit files = %v, want a.txt added", files)
	}

	files, err = r.Files(context.Background(), c2.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "b.txt" || files[0].Status != models.ChangeAdded {
		t.Fatalf("files = %v, want b.txt added", files)
	}

	// Third commit renames a file without touching its content.
	if _, err := wt.Remove("a.txt"); err != nil {
		t.Fatal(err)
	}
	c3 := commitFile(t, repo, dir, "renamed.txt", "shared content\nextra\n", "rename a", time.Now().Add(-time.Hour))

	files, err = r.Files(context.Background(), c3.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %v, want a single rename entry", files)
	}
	if files[0].Path != "renamed.txt" || files[0].Status != models.ChangeRenamed {
		t.Fatalf("files = %v, want renamed.txt renamed", files)
	}
}

func TestFilesModifyAndRemove(t *testing.T) {
	repo, dir := initRepo(t)
	commitFile(t, repo, dir, "keep.txt", "keep\n", "init keep", time.Now().Add(-3*time.Hour))
	commitFile(t, repo, dir, "gone.txt", "gone\n", "init gone", time.Now().Add(-3*time.Hour))

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Remove("gone.txt"); err != nil {
		t.Fatal(err)
	}
	c := commitFile(t, repo, dir, "keep.txt", "keep\nchanged\n", "edit and drop", time.Now().Add(-time.Hour))

	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	files, err := r.Files(context.Background(), c.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", files)
	}
	if files[0].Path != "gone.txt" || files[0].Status != models.ChangeRemoved {
		t.Fatalf("files[0] = %v, want gone.txt removed", files[0])
	}
	if files[1].Path != "keep.txt" || files[1].Status != models.ChangeModified {
		t.Fatalf("files[1] = %v, want keep.txt modified", files[1])
	}
}

func TestParseHunks(t *testing.T) {
	diff := `diff --git a/a.txt b/a.txt
index 1111111..2222222 100644
--- a/a.txt
+++ b/a.txt
@@ -1,3 +1,3 @@
 one
-two
+TWO
@@ -10 +10,2 @@
 ten
+eleven
`
	hunks := parseHunks(diff)
	if len(hunks) != 2 {
		t.Fatalf("got %d hunks, want 2", len(hunks))
	}
	first := hunks[0]
	if first.OldStart != 1 || first.OldCount != 3 || first.NewStart != 1 || first.NewCount != 3 {
		t.Fatalf("first hunk = %+v", first)
	}
	if len(first.Lines) != 3 {
		t.Fatalf("first hunk lines = %v", first.Lines)
	}
	second := hunks[1]
	if second.OldStart != 10 || second.OldCount != 1 || second.NewStart != 10 || second.NewCount != 2 {
		t.Fatalf("second hunk = %+v, counts default to 1 when omitted", second)
	}
	if second.LineStart != 1 {
		t.Fatalf("second hunk ordinal = %d, want 1", second.LineStart)
	}
	if len(parseHunks("")) != 0 {
		t.Fatal("empty diff must parse to no hunks")
	}
}
