package repo

import (
	"context"
	"strings"
)

// Dirty reports whether the checkout holds anything a fresh checkout would
// not: modifications, untracked files or ignored files.
func (g *Git) Dirty(ctx context.Context) (bool, error) {
	res, err := g.run(ctx, "status", "--porcelain", "--untracked-files=all", "--ignored")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Output) != "", nil
}
