package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process has
// exited or the context is done. Helpers such as git-remote-https can inherit
// the pipe and outlive git itself.
var waitDelay = 5 * time.Second

// Command is a single process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the current process environment.
	Env []string
	// Stream, when set, receives stdout and stderr as they are produced in
	// addition to the captured output.
	Stream io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	// Output is the interleaved stdout and stderr.
	Output string
}

// Executor runs commands. A non-zero exit is reported through Result.ExitCode;
// the error return is reserved for commands that could not run at all
// (missing binary, cancelled context).
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner is the os/exec backed Executor.
type ExecRunner struct{}

// Run executes cmd and captures its combined output.
func (ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var buf bytes.Buffer
	var out io.Writer = &buf
	if c.Stream != nil {
		out = io.MultiWriter(&buf, c.Stream)
	}
	// A single writer for both streams keeps the transcript in the order the
	// process produced it.
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	res := Result{Output: buf.String()}
	if err == nil {
		return res, nil
	}
	// The process exited 0 but a descendant kept the pipes open.
	if errors.Is(err, exec.ErrWaitDelay) && ctx.Err() == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s: %w", c, ctx.Err())
	}
	return res, fmt.Errorf("%s: %w", c, err)
}

var _ Executor = ExecRunner{}
