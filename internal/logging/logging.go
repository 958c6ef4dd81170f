package logging

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// On a terminal the output is colored text; in CI (no TTY) it is JSON so the
// Actions log viewer keeps one record per line.
func Setup(verbose bool) {
	slog.SetDefault(slog.New(newHandler(os.Stderr, verbose, isTerminal())))
}

func newHandler(w io.Writer, verbose, tty bool) *charmlog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "backport",
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	if !tty {
		handler.SetFormatter(charmlog.JSONFormatter)
	}
	return handler
}

// ForRun returns a logger tagged with the identity of one backport attempt.
func ForRun(runID string, pr int, target string) *slog.Logger {
	l := slog.Default().With("run_id", runID, "pr", pr)
	if target != "" {
		l = l.With("target", target)
	}
	return l
}

// LineWriter forwards every complete line written to it to the logger at info
// level. Flush emits a trailing partial line.
type LineWriter struct {
	mu     sync.Mutex
	logger *slog.Logger
	msg    string
	buf    strings.Builder
}

// NewLineWriter creates a LineWriter that logs each line under msg.
func NewLineWriter(logger *slog.Logger, msg string) *LineWriter {
	return &LineWriter{logger: logger, msg: msg}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	pending := w.buf.String()
	idx := strings.LastIndexByte(pending, '\n')
	if idx < 0 {
		return len(p), nil
	}

	sc := bufio.NewScanner(strings.NewReader(pending[:idx]))
	for sc.Scan() {
		w.logger.Info(w.msg, "line", sc.Text())
	}
	w.buf.Reset()
	w.buf.WriteString(pending[idx+1:])
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.logger.Info(w.msg, "line", w.buf.String())
		w.buf.Reset()
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
