// Package repoops implements the RepoOps capability: workspace isolation,
// dirty-file listing, diffing, staged commits, and merge-back, all
// implemented over os/exec git subprocess calls via internal/git.
package repoops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/orc/internal/git"
)

// RepoOps provides the orchestrator's repository-manipulation capability.
// Each workspace is a git worktree at <worktreeDir>/orc-<issueID>, created
// through internal/git with its stale-registration retry/prune behavior.
type RepoOps struct {
	g *git.Git
}

// New creates a RepoOps rooted at repoDir, with worktrees under worktreeDir
// (relative to repoDir, e.g. ".orc/worktrees").
func New(repoDir, worktreeDir string) (*RepoOps, error) {
	cfg := git.DefaultConfig()
	cfg.WorktreeDir = worktreeDir
	g, err := git.New(repoDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("init repo ops: %w", err)
	}
	return &RepoOps{g: g}, nil
}

// ListDirty returns paths that are dirty or untracked in the main
// repository, used to compute a worker's baseline before it starts.
func (r *RepoOps) ListDirty() ([]string, error) {
	status, err := r.g.Context().Status()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return parseStatusPaths(status), nil
}

// CreateIsolatedWorkspace creates a worktree for slot (named by issueID),
// returning the absolute workspace path.
func (r *RepoOps) CreateIsolatedWorkspace(issueID, baseBranch string) (string, error) {
	path, err := r.g.CreateWorktree(issueID, baseBranch)
	if err != nil {
		return "", fmt.Errorf("create workspace for %s: %w", issueID, err)
	}
	return path, nil
}

// RemoveWorkspace removes the worktree at path, whether or not the branch is
// merged. Safe to call on an already-removed path.
func (r *RepoOps) RemoveWorkspace(path string) error {
	if err := r.g.CleanupWorktreeAtPath(path); err != nil {
		return fmt.Errorf("remove workspace %s: %w", path, err)
	}
	return nil
}

// ListWorkspaces returns the paths of every currently registered worktree.
func (r *RepoOps) ListWorkspaces() ([]string, error) {
	infos, err := r.g.Context().ListWorktrees()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	paths := make([]string, 0, len(infos))
	for _, wi := range infos {
		paths = append(paths, wi.Path)
	}
	return paths, nil
}

// WorkspaceDiff returns the set of files touched in the workspace at path,
// relative to its starting commit. Used by ComplianceChecker to compute the
// agent-attributable diff once subtracted from a baseline.
func (r *RepoOps) WorkspaceDiff(path string) ([]string, error) {
	wctx := r.g.Context().InWorktree(path)
	status, err := wctx.Status()
	if err != nil {
		return nil, fmt.Errorf("workspace status: %w", err)
	}
	return parseStatusPaths(status), nil
}

// StageAndCommit stages all changes in the workspace at path and commits
// them with message. Requires worktree context.
func (r *RepoOps) StageAndCommit(path, message string) (string, error) {
	wg := r.g.InWorktree(path)
	cp, err := wg.CreateCheckpoint("", "", message)
	if err != nil {
		return "", fmt.Errorf("stage and commit in %s: %w", path, err)
	}
	return cp.CommitSHA, nil
}

// MergeCommitIntoMain merges branch (a workspace branch) into the branch
// checked out in the main repository; callers pass that branch as target.
// On conflict, the merge is aborted and git.ErrMergeConflict is returned
// wrapped with the list of conflicting files; the caller is responsible for
// leaving the workspace intact for human inspection.
func (r *RepoOps) MergeCommitIntoMain(branch, target string) error {
	main := r.g // operates on main repo context, not a worktree
	if main.IsInWorktreeContext() {
		return fmt.Errorf("merge into main must run from the main repository context")
	}

	result, err := main.DetectConflicts(target)
	if err != nil {
		return fmt.Errorf("detect conflicts: %w", err)
	}
	if result.ConflictsDetected {
		return fmt.Errorf("%w: %s", git.ErrMergeConflict, strings.Join(result.ConflictFiles, ", "))
	}

	// git.Git.Merge only runs in worktree context, so merge directly here.
	mctx := main.Context()
	if _, err := mctx.RunGit("merge", "--no-ff", "--no-edit", branch); err != nil {
		conflicts, _ := mctx.RunGit("diff", "--name-only", "--diff-filter=U")
		_, _ = mctx.RunGit("merge", "--abort")
		if conflicts = strings.TrimSpace(conflicts); conflicts != "" {
			return fmt.Errorf("%w: %s", git.ErrMergeConflict, strings.ReplaceAll(conflicts, "\n", ", "))
		}
		return fmt.Errorf("merge %s into %s: %w", branch, target, err)
	}
	return nil
}

// RollbackFile restores path to its committed HEAD state within the
// workspace at workspacePath, discarding any uncommitted agent changes to
// that single file. Used by ComplianceChecker to undo a manifest violation
// while preserving the rest of the agent's legitimate changes.
func (r *RepoOps) RollbackFile(workspacePath, path string) error {
	wctx := r.g.Context().InWorktree(workspacePath)
	if _, err := wctx.RunGit("checkout", "HEAD", "--", path); err != nil {
		// File may not exist at HEAD (newly created by the agent); remove it.
		full := filepath.Join(workspacePath, path)
		if rmErr := os.Remove(full); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("rollback %s: checkout failed (%v) and remove failed (%w)", path, err, rmErr)
		}
		return nil
	}
	return nil
}

// Git exposes the underlying git.Git handle for callers that need
// lower-level access (e.g. the dispatcher computing baselines per slot).
func (r *RepoOps) Git() *git.Git { return r.g }

// parseStatusPaths extracts file paths from `git status --porcelain` style
// output as returned by Context.Status().
func parseStatusPaths(status string) []string {
	var paths []string
	for _, line := range strings.Split(status, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if path == "" {
			continue
		}
		// Renames are reported as "old -> new"; keep the new path.
		if idx := strings.Index(path, " -> "); idx != -1 {
			path = path[idx+4:]
		}
		paths = append(paths, path)
	}
	return paths
}
