package backport

import (
	"errors"
	"regexp"
)

// ErrNoTrigger is returned when a comment does not contain a backport command.
var ErrNoTrigger = errors.New("no backport branch found")

// triggerPattern captures the branch token after the first "/backport to ".
// The token ends at the first character outside letters, digits, '/', '.', '-', '_'.
var triggerPattern = regexp.MustCompile(`/backport to ([a-zA-Z\d/._-]+)`)

// ParseTrigger returns the target branch named by the first backport command
// in body.
func ParseTrigger(body string) (string, error) {
	m := triggerPattern.FindStringSubmatch(body)
	if m == nil {
		return "", ErrNoTrigger
	}
	return m[1], nil
}
