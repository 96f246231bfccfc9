package models

// JSON field names are camelCase because the desktop frontend consumes these
// payloads directly.

// Repo is one discovered repository under the configured root. ID is the
// absolute path on disk and is the key every cache record hangs off.
type Repo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BranchMetadata struct {
	IsMerged       bool   `json:"isMerged"`
	IsStale        bool   `json:"isStale"`
	IsUnborn       bool   `json:"isUnborn"`
	LastCommitDate string `json:"lastCommitDate,omitempty"`
}

type BranchInfo struct {
	Current        string                    `json:"current"`
	Branches       []string                  `json:"branches"`
	BranchMetadata map[string]BranchMetadata `json:"branchMetadata,omitempty"`
	Head           string                    `json:"head,omitempty"`
	RefsHash       string                    `json:"refsHash,omitempty"`
}

type Commit struct {
	SHA     string   `json:"sha"`
	Author  string   `json:"author"`
	Email   string   `json:"email"`
	Date    string   `json:"date"` // RFC3339 so date strings order lexicographically
	Message string   `json:"message"`
	Parents []string `json:"parents"`
	IsMerge bool     `json:"isMerge"`
	// Branches whose tip is (local mode) or whose history contains (full
	// mode) this commit.
	Branches      []string `json:"branches"`
	PrimaryBranch string   `json:"primaryBranch,omitempty"`
	IsHead        bool     `json:"isHead,omitempty"`
	IsMain        bool     `json:"isMain,omitempty"`
}

type FileChange struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "added", "modified", "removed", "renamed"
}

type DiffHunk struct {
	OldStart  int      `json:"oldStart"`
	OldCount  int      `json:"oldCount"`
	NewStart  int      `json:"newStart"`
	NewCount  int      `json:"newCount"`
	Lines     []string `json:"lines"`
	LineStart int      `json:"lineStart"` // hunk index within the file diff
}

type DiffResponse struct {
	Diff     string     `json:"diff"`
	Hunks    []DiffHunk `json:"hunks"`
	FilePath string     `json:"filePath"`
}

type Tag struct {
	Name string `json:"name"`
	SHA  string `json:"sha"`
	Date string `json:"date"`
}

type StatusFile struct {
	Path     string `json:"path"`
	OldPath  string `json:"oldPath,omitempty"`
	Status   string `json:"status"` // raw two-letter porcelain code
	Staged   bool   `json:"staged"`
	Unstaged bool   `json:"unstaged"`
	Type     string `json:"type"` // "modified", "added", "deleted", "untracked", "renamed"
}

type StatusResponse struct {
	Files []StatusFile `json:"files"`
}

type ConfigResponse struct {
	ReposRoot string `json:"reposRoot"`
}

// Commit walk modes. ModeAll is the aggregated all-branches walk; it is a
// distinct cache key component, not a value the per-branch walker accepts.
const (
	ModeFull  = "full"
	ModeLocal = "local"
	ModeAll   = "all"
)

// IsWalkMode reports whether mode is one of the per-branch walk
// strategies. ModeAll is deliberately excluded: the aggregated view has
// its own endpoint and its own cache key.
func IsWalkMode(mode string) bool {
	switch mode {
	case ModeFull, ModeLocal:
		return true
	default:
		return false
	}
}

// File change statuses as the frontend expects them.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeRemoved  = "removed"
	ChangeRenamed  = "renamed"
)
