// Package git provides git operations for orc: worktree-isolated repository
// access for RepoOps, built on Context (internal/git/context.go).
package git

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Checkpoint represents a git checkpoint (commit) for an attempt.
type Checkpoint struct {
	TaskID    string    `json:"task_id"`
	Phase     string    `json:"phase"`
	CommitSHA string    `json:"commit_sha"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultProtectedBranches lists branches that orc refuses to push to or
// reset/rebase directly, regardless of Config.
var DefaultProtectedBranches = []string{"main", "master", "develop", "release"}

// IsProtectedBranch reports whether branch is in the protected list.
func IsProtectedBranch(branch string, protected []string) bool {
	for _, p := range protected {
		if p == branch {
			return true
		}
	}
	return false
}

// Git provides git operations for orc tasks.
// The mutex protects compound operations that must be atomic (e.g., rebase+abort,
// worktree creation with cleanup). Individual git commands don't need locking
// as they are atomic at the process level.
type Git struct {
	mu                sync.Mutex // Protects compound operations that must be atomic
	ctx               *Context
	branchPrefix      string
	commitPrefix      string
	worktreeDir       string
	executorPrefix    string   // For multi-user branch/worktree naming (empty in solo mode)
	inWorktreeContext bool     // True when operating within a worktree
	protectedBranches []string // Branches that cannot be pushed to directly
}

// Config holds git configuration.
type Config struct {
	BranchPrefix      string   // Prefix for task branches (default: "orc/")
	CommitPrefix      string   // Prefix for commit messages (default: "[orc]")
	WorktreeDir       string   // Directory for worktrees (default: ".orc/worktrees")
	ExecutorPrefix    string   // Executor prefix for multi-user mode (empty in solo mode)
	ProtectedBranches []string // Branches protected from direct push (default: main, master, develop, release)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BranchPrefix:      "orc/",
		CommitPrefix:      "[orc]",
		WorktreeDir:       ".orc/worktrees",
		ProtectedBranches: DefaultProtectedBranches,
	}
}

// New creates a new Git instance for the repository at workDir.
func New(workDir string, cfg Config) (*Git, error) {
	ctx, err := NewContext(workDir, WithWorktreeDir(cfg.WorktreeDir))
	if err != nil {
		return nil, fmt.Errorf("init git context: %w", err)
	}

	protectedBranches := cfg.ProtectedBranches
	if len(protectedBranches) == 0 {
		protectedBranches = DefaultProtectedBranches
	}

	return &Git{
		ctx:               ctx,
		branchPrefix:      cfg.BranchPrefix,
		commitPrefix:      cfg.CommitPrefix,
		worktreeDir:       cfg.WorktreeDir,
		executorPrefix:    cfg.ExecutorPrefix,
		protectedBranches: protectedBranches,
	}, nil
}

// Context returns the underlying git context.
func (g *Git) Context() *Context {
	return g.ctx
}

// GetCurrentBranch returns the current branch name.
func (g *Git) GetCurrentBranch() (string, error) {
	return g.ctx.CurrentBranch()
}

// IsClean returns true if the working directory is clean.
func (g *Git) IsClean() (bool, error) {
	return g.ctx.IsClean()
}

// Fetch fetches from the remote.
func (g *Git) Fetch(remote string) error {
	return g.ctx.Fetch(remote)
}

// GetRemoteURL returns the URL of the origin remote.
func (g *Git) GetRemoteURL() (string, error) {
	return g.ctx.GetRemoteURL("origin")
}

// Merge merges a branch into current.
//
// SAFETY: This operation requires worktree context to prevent accidental modification
// of the main repository.
func (g *Git) Merge(branch string, noFF bool) error {
	if err := g.RequireWorktreeContext("git merge"); err != nil {
		return err
	}
	args := []string{"merge"}
	if noFF {
		args = append(args, "--no-ff")
	}
	args = append(args, branch)
	_, err := g.ctx.RunGit(args...)
	return err
}

// SyncResult contains the result of a conflict-detection or sync operation.
type SyncResult struct {
	Synced            bool
	ConflictsDetected bool
	ConflictFiles     []string
	CommitsBehind     int
	CommitsAhead      int
}

// ErrMergeConflict is returned when a merge/rebase encounters conflicts.
var ErrMergeConflict = errors.New("merge conflict detected")

// GetCommitCounts returns (ahead, behind) commit counts relative to target.
func (g *Git) GetCommitCounts(target string) (int, int, error) {
	output, err := g.ctx.RunGit("rev-list", "--count", "--left-right", "HEAD..."+target)
	if err != nil {
		return 0, 0, err
	}

	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %s", output)
	}

	var ahead, behind int
	_, _ = fmt.Sscanf(parts[0], "%d", &ahead)
	_, _ = fmt.Sscanf(parts[1], "%d", &behind)
	return ahead, behind, nil
}

// DetectConflicts checks if the current branch would have conflicts when merged with target.
// Performs a dry-run merge without modifying the working tree when possible,
// falling back to an actual merge attempt (with guaranteed abort+reset) otherwise.
func (g *Git) DetectConflicts(target string) (*SyncResult, error) {
	result := &SyncResult{}

	ahead, behind, err := g.GetCommitCounts(target)
	if err != nil {
		return nil, fmt.Errorf("get commit counts: %w", err)
	}
	result.CommitsAhead = ahead
	result.CommitsBehind = behind

	if behind == 0 {
		result.Synced = true
		return result, nil
	}

	currentBranch, err := g.ctx.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("get current branch: %w", err)
	}

	mergeBase, err := g.ctx.RunGit("merge-base", currentBranch, target)
	if err != nil {
		return nil, fmt.Errorf("get merge base: %w", err)
	}
	mergeBase = strings.TrimSpace(mergeBase)

	output, err := g.ctx.RunGit("merge-tree", "--write-tree", "--no-messages", mergeBase, currentBranch, target)
	if err != nil {
		return g.detectConflictsViaMerge(target)
	}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.HasPrefix(line, "CONFLICT") {
			result.ConflictsDetected = true
			if idx := strings.Index(line, " in "); idx != -1 {
				result.ConflictFiles = append(result.ConflictFiles, strings.TrimSpace(line[idx+4:]))
			}
		}
	}

	return result, nil
}

// detectConflictsViaMerge performs conflict detection via an actual merge attempt.
// Falls back for older git versions that don't support merge-tree --write-tree.
//
// SAFETY: This function performs merge and reset operations. It MUST only be
// called in worktree context.
func (g *Git) detectConflictsViaMerge(target string) (*SyncResult, error) {
	if err := g.RequireWorktreeContext("conflict detection via merge"); err != nil {
		return nil, err
	}
	if err := g.RequireNonProtectedBranch("conflict detection via merge"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result := &SyncResult{}

	head, err := g.ctx.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	// Idempotent cleanup: merge --abort and reset --hard are safe to call
	// even if no merge was started or we're already at the target state.
	defer func() {
		_, _ = g.ctx.RunGit("merge", "--abort")
		_, _ = g.ctx.RunGit("reset", "--hard", head)
	}()

	_, mergeErr := g.ctx.RunGit("merge", "--no-commit", "--no-ff", target)
	if mergeErr != nil {
		output, _ := g.ctx.RunGit("diff", "--name-only", "--diff-filter=U")
		if output != "" {
			result.ConflictsDetected = true
			result.ConflictFiles = strings.Split(strings.TrimSpace(output), "\n")
		}
	}

	return result, nil
}

// RebaseWithConflictCheck rebases onto target and returns details about any conflicts.
// If conflicts occur, the rebase is aborted and ErrMergeConflict is returned.
//
// SAFETY: requires worktree context.
func (g *Git) RebaseWithConflictCheck(target string) (*SyncResult, error) {
	if err := g.RequireWorktreeContext("rebase with conflict check"); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	result := &SyncResult{}

	ahead, behind, err := g.GetCommitCounts(target)
	if err != nil {
		return nil, fmt.Errorf("get commit counts: %w", err)
	}
	result.CommitsAhead = ahead
	result.CommitsBehind = behind

	if behind == 0 {
		result.Synced = true
		return result, nil
	}

	_, rebaseErr := g.ctx.RunGit("rebase", target)
	if rebaseErr != nil {
		output, _ := g.ctx.RunGit("diff", "--name-only", "--diff-filter=U")
		if output != "" {
			result.ConflictsDetected = true
			result.ConflictFiles = strings.Split(strings.TrimSpace(output), "\n")
		}

		_, _ = g.ctx.RunGit("rebase", "--abort")

		if result.ConflictsDetected {
			return result, fmt.Errorf("%w: %d files have conflicts", ErrMergeConflict, len(result.ConflictFiles))
		}
		return result, fmt.Errorf("rebase failed: %w", rebaseErr)
	}

	result.Synced = true
	return result, nil
}

// AbortRebase aborts any in-progress rebase.
func (g *Git) AbortRebase() error {
	_, err := g.ctx.RunGit("rebase", "--abort")
	return err
}

// AbortMerge aborts any in-progress merge.
func (g *Git) AbortMerge() error {
	_, err := g.ctx.RunGit("merge", "--abort")
	return err
}

// DiscardChanges discards all uncommitted changes in the working directory,
// staged and unstaged, and removes untracked files.
// SAFETY: destructive; only use when explicitly requested.
func (g *Git) DiscardChanges() error {
	_, _ = g.ctx.RunGit("reset", "HEAD")

	if _, err := g.ctx.RunGit("checkout", "--", "."); err != nil {
		return fmt.Errorf("discard tracked changes: %w", err)
	}
	if _, err := g.ctx.RunGit("clean", "-fd"); err != nil {
		return fmt.Errorf("remove untracked files: %w", err)
	}
	return nil
}
