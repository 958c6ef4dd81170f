package provider

import "context"

// Backend is the code-hosting API surface a backport run needs.
// Pull request creation is not part of it: pushing the working branch is what
// creates or updates the backport pull request.
type Backend interface {
	// Name returns the short identifier for this backend (e.g., "github").
	Name() string

	// MatchesURL returns true if the given URL belongs to this backend's hosting service.
	MatchesURL(url string) bool

	// PostComment posts a general comment on an issue or pull request discussion.
	PostComment(ctx context.Context, owner, repo string, number int, body string) error

	// FetchPatch downloads a pull request's change in mailbox patch format.
	FetchPatch(ctx context.Context, patchURL string) ([]byte, error)

	// FindOpenPR returns the open pull request whose head is branch, or nil
	// when there is none.
	FindOpenPR(ctx context.Context, owner, repo, branch string) (*PRInfo, error)
}

// PRInfo contains metadata about a pull request.
type PRInfo struct {
	// Number is the pull request number.
	Number int
	// Title is the pull request title.
	Title string
	// URL is the web URL to view the pull request.
	URL string
	// BaseBranch is the branch being merged into.
	BaseBranch string
}
