package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// setupTestRepo initializes a throwaway git repository in a temp directory
// with a committed initial file, returning the repo's absolute path.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	runInit := []struct {
		name string
		args []string
	}{
		{"git", []string{"init", "-b", "main"}},
		{"git", []string{"config", "user.email", "orc-test@example.com"}},
		{"git", []string{"config", "user.name", "orc-test"}},
	}
	for _, c := range runInit {
		cmd := exec.Command(c.name, c.args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%s %v: %v\n%s", c.name, c.args, err, out)
		}
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# test repo\n"), 0644); err != nil {
		t.Fatalf("write README: %v", err)
	}

	for _, args := range [][]string{
		{"add", "."},
		{"commit", "-m", "initial commit"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	return dir
}

// testConfigWithWorktreeDir returns DefaultConfig with worktrees placed under
// .orc/worktrees inside repoDir.
func testConfigWithWorktreeDir(repoDir string) Config {
	cfg := DefaultConfig()
	cfg.WorktreeDir = ".orc/worktrees"
	return cfg
}
