package backport

import "fmt"

// WorkingBranch names the automation-owned branch that carries the backport of
// pull request prNumber onto target. The same inputs always give the same name,
// which is what makes a repeated run update the earlier attempt.
func WorkingBranch(prNumber int, target string) string {
	return fmt.Sprintf("backport/pr-%d-to-%s", prNumber, target)
}
