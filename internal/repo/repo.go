package repo

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// CommandError reports a git invocation that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, out)
}

// Git drives one local checkout through an Executor.
type Git struct {
	exec   Executor
	dir    string
	remote string
}

// NewGit returns a client for the checkout at dir that talks to remote.
func NewGit(exec Executor, dir, remote string) *Git {
	if remote == "" {
		remote = "origin"
	}
	return &Git{exec: exec, dir: dir, remote: remote}
}

// Remote returns the name of the upstream remote.
func (g *Git) Remote() string {
	return g.remote
}

func (g *Git) command(stream io.Writer, args ...string) Command {
	return Command{
		Name: "git",
		Args: args,
		Dir:  g.dir,
		// Never block on a credential prompt inside CI.
		Env:    []string{"GIT_TERMINAL_PROMPT=0"},
		Stream: stream,
	}
}

// run executes git and converts a non-zero exit into a *CommandError.
func (g *Git) run(ctx context.Context, args ...string) (Result, error) {
	return g.runStream(ctx, nil, args...)
}

func (g *Git) runStream(ctx context.Context, stream io.Writer, args ...string) (Result, error) {
	cmd := g.command(stream, args...)
	res, err := g.exec.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &CommandError{Command: cmd.String(), ExitCode: res.ExitCode, Output: res.Output}
	}
	return res, nil
}

// Clean discards everything a previous run may have left behind: an
// interrupted am session, tracked modifications, and untracked or ignored files.
func (g *Git) Clean(ctx context.Context) error {
	// Exits non-zero when no am session is in progress.
	if _, err := g.exec.Run(ctx, g.command(nil, "am", "--abort")); err != nil {
		return err
	}
	if _, err := g.run(ctx, "reset", "--hard", "--quiet"); err != nil {
		return err
	}
	if _, err := g.run(ctx, "clean", "-ffdx", "--quiet"); err != nil {
		return err
	}
	return nil
}

// CheckoutUpstream fetches branch from the remote and checks it out at the
// remote tip, discarding any local commits on it.
func (g *Git) CheckoutUpstream(ctx context.Context, branch string) error {
	tracking := fmt.Sprintf("refs/remotes/%s/%s", g.remote, branch)
	refspec := fmt.Sprintf("+refs/heads/%s:%s", branch, tracking)
	if _, err := g.run(ctx, "fetch", "--no-tags", g.remote, refspec); err != nil {
		return err
	}
	if _, err := g.run(ctx, "checkout", "--quiet", "-B", branch, tracking); err != nil {
		return err
	}
	return nil
}

// ConfigureIdentity sets the committer identity for the checkout.
func (g *Git) ConfigureIdentity(ctx context.Context, name, email string) error {
	if _, err := g.run(ctx, "config", "user.name", name); err != nil {
		return err
	}
	if _, err := g.run(ctx, "config", "user.email", email); err != nil {
		return err
	}
	return nil
}

// CreateBranch creates (or resets) name at the current HEAD and switches to it.
func (g *Git) CreateBranch(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", "--quiet", "-B", name)
	return err
}

// RemoteBranchExists reports whether refs/heads/name exists on the remote.
// An absent branch is a normal answer, not an error.
func (g *Git) RemoteBranchExists(ctx context.Context, name string) (bool, error) {
	cmd := g.command(nil, "ls-remote", "--exit-code", "--heads", g.remote, "refs/heads/"+name)
	res, err := g.exec.Run(ctx, cmd)
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 2:
		// --exit-code: no matching refs.
		return false, nil
	default:
		return false, &CommandError{Command: cmd.String(), ExitCode: res.ExitCode, Output: res.Output}
	}
}

// ApplyPatch replays a mailbox-format patch with a three-way merge, ignoring
// whitespace differences and keeping non-patch trailers. A patch with an empty
// diff becomes an empty commit. The full transcript is returned on success and
// failure, and streamed to transcript as it runs.
func (g *Git) ApplyPatch(ctx context.Context, patchPath string, transcript io.Writer) (string, error) {
	res, err := g.runStream(ctx, transcript, "am", "--3way", "--ignore-whitespace", "--keep-non-patch", "--empty=keep", patchPath)
	return res.Output, err
}

// AbortApply abandons an am session left by a failed ApplyPatch.
func (g *Git) AbortApply(ctx context.Context) error {
	_, err := g.run(ctx, "am", "--abort")
	return err
}

// ForcePush overwrites refs/heads/branch on the remote with HEAD.
func (g *Git) ForcePush(ctx context.Context, branch string) error {
	refspec := fmt.Sprintf("HEAD:refs/heads/%s", branch)
	_, err := g.run(ctx, "push", "--force", g.remote, refspec)
	return err
}

// RemoteURL returns the fetch URL of the configured remote.
func (g *Git) RemoteURL(ctx context.Context) (string, error) {
	res, err := g.run(ctx, "remote", "get-url", g.remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Output), nil
}

// SameRepository reports whether a git remote URL points at owner/name on
// any host. SSH and HTTPS forms are both accepted.
func SameRepository(remoteURL, owner, name string) bool {
	normalized := normalizeGitURL(remoteURL)
	want := strings.ToLower(owner + "/" + name)
	return normalized == want || strings.HasSuffix(normalized, "/"+want)
}

// normalizeGitURL strips scheme, user and .git suffix so SSH and HTTPS
// remotes compare equal.
func normalizeGitURL(url string) string {
	url = strings.TrimSpace(url)
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	// git@host:owner/repo → host/owner/repo
	if strings.HasPrefix(url, "git@") {
		url = strings.TrimPrefix(url, "git@")
		url = strings.Replace(url, ":", "/", 1)
	}

	for _, scheme := range []string{"https://", "http://", "ssh://"} {
		url = strings.TrimPrefix(url, scheme)
	}
	// Drop credentials such as x-access-token:...@github.com.
	if at := strings.LastIndex(url, "@"); at >= 0 {
		url = url[at+1:]
	}

	return strings.ToLower(strings.TrimSuffix(url, "/"))
}
