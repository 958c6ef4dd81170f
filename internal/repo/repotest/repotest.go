// Package repotest builds throwaway git repositories for tests: a bare
// remote, a seed clone used to author history, and a work clone that the
// code under test operates on.
package repotest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// ReleaseBranch is the long-lived branch New creates next to main.
const ReleaseBranch = "release/8.0"

// Fixture is a remote with two clones.
type Fixture struct {
	Remote string
	Seed   string
	Work   string
}

// New creates a bare remote whose main and release/8.0 branches share one
// commit containing file.txt, and clones it into Work.
func New(t *testing.T) *Fixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	f := &Fixture{
		Remote: filepath.Join(root, "remote.git"),
		Seed:   filepath.Join(root, "seed"),
		Work:   filepath.Join(root, "work"),
	}

	Git(t, root, "init", "--quiet", "--bare", f.Remote)
	Git(t, f.Remote, "symbolic-ref", "HEAD", "refs/heads/main")

	require.NoError(t, os.MkdirAll(f.Seed, 0755))
	Git(t, f.Seed, "init", "--quiet")
	Git(t, f.Seed, "symbolic-ref", "HEAD", "refs/heads/main")
	Git(t, f.Seed, "remote", "add", "origin", f.Remote)
	WriteFile(t, f.Seed, "file.txt", "alpha\nbeta\ngamma\n")
	Git(t, f.Seed, "add", "-A")
	Git(t, f.Seed, "commit", "--quiet", "-m", "initial")
	Git(t, f.Seed, "branch", ReleaseBranch)
	Git(t, f.Seed, "push", "--quiet", "origin", "main", ReleaseBranch)

	Git(t, root, "clone", "--quiet", f.Remote, f.Work)
	return f
}

// Git runs git in dir with a fixed test identity and returns trimmed output.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test Author",
		"GIT_AUTHOR_EMAIL=author@example.com",
		"GIT_COMMITTER_NAME=Test Author",
		"GIT_COMMITTER_EMAIL=author@example.com",
		"GIT_TERMINAL_PROMPT=0",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(out))
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to dir/name.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// Commit writes file.txt on branch in the seed clone, commits, pushes and
// returns the new commit id.
func (f *Fixture) Commit(t *testing.T, branch, content, message string) string {
	t.Helper()
	Git(t, f.Seed, "checkout", "--quiet", branch)
	WriteFile(t, f.Seed, "file.txt", content)
	Git(t, f.Seed, "commit", "--quiet", "-am", message)
	Git(t, f.Seed, "push", "--quiet", "origin", branch)
	return Git(t, f.Seed, "rev-parse", "HEAD")
}

// EmptyCommit commits on branch in the seed clone without changing any file,
// pushes and returns the new commit id.
func (f *Fixture) EmptyCommit(t *testing.T, branch, message string) string {
	t.Helper()
	Git(t, f.Seed, "checkout", "--quiet", branch)
	Git(t, f.Seed, "commit", "--quiet", "--allow-empty", "-m", message)
	Git(t, f.Seed, "push", "--quiet", "origin", branch)
	return Git(t, f.Seed, "rev-parse", "HEAD")
}

// Patch returns commit rev from the seed clone in mailbox format, the shape
// GitHub serves at a pull request's .patch URL. Empty commits are included.
func (f *Fixture) Patch(t *testing.T, rev string) []byte {
	t.Helper()
	return []byte(Git(t, f.Seed, "format-patch", "--always", "-1", "--stdout", rev) + "\n")
}

// RemoteRef returns the commit refs/heads/branch points at on the remote, or
// "" when the branch does not exist.
func (f *Fixture) RemoteRef(t *testing.T, branch string) string {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = f.Remote
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ReadFile returns the content of name in dir.
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}
