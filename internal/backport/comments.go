package backport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanmeadows/backport/internal/provider"
	"github.com/alanmeadows/backport/internal/repo"
)

func startComment(target string, req Request) string {
	return fmt.Sprintf("Started backporting to %s: %s", target, req.RunURL())
}

func conflictComment(target, transcript string, existing *provider.PRInfo) string {
	transcript = strings.TrimRight(transcript, "\n")
	fence := codeFence(transcript)

	var b strings.Builder
	fmt.Fprintf(&b, "Backporting to %s failed, the patch most likely resulted in conflicts:\n\n", target)
	b.WriteString(fence + "shell\n")
	b.WriteString(transcript)
	b.WriteString("\n" + fence + "\n\n")
	b.WriteString("Please backport manually!")
	writeExisting(&b, existing)
	return b.String()
}

// codeFence returns a backtick fence longer than any backtick run in s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, c := range s {
		if c != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return strings.Repeat("`", max(3, longest+1))
}

// failureComment names the failed step only. Command output can carry remote
// URLs and server messages, so it stays in the run log and the run report.
func failureComment(target string, err error, existing *provider.PRInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "An error occurred while backporting to %s, please check the run log for details!", target)
	if summary := failureSummary(err); summary != "" {
		b.WriteString("\n\n" + summary)
	}
	writeExisting(&b, existing)
	return b.String()
}

func failureSummary(err error) string {
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		return ""
	}
	var cmdErr *repo.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Sprintf("Step `%s` failed: `%s` exited with status %d.", stepErr.Step, commandName(cmdErr.Command), cmdErr.ExitCode)
	}
	return fmt.Sprintf("Step `%s` failed.", stepErr.Step)
}

// commandName keeps the program and subcommand, e.g. "git push".
func commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return strings.Join(fields, " ")
}

func writeExisting(b *strings.Builder, existing *provider.PRInfo) {
	if existing == nil {
		return
	}
	fmt.Fprintf(b, "\n\nThe existing backport pull request #%d was not updated.", existing.Number)
}
