package backport

import (
	"github.com/alanmeadows/backport/internal/provider"
)

// Request is everything one backport attempt needs from its triggering event.
type Request struct {
	// CommentBody is the raw text of the trigger comment.
	CommentBody string
	// PRNumber is the pull request the comment was made on.
	PRNumber int
	Owner    string
	Repo     string
	// RunID identifies the CI run executing the attempt.
	RunID string
	// PatchURL serves the pull request's change in mailbox format.
	PatchURL string
	// RepoURL is the repository web URL, used to link the run.
	RepoURL string
}

// RunURL links the CI run that executes this request.
func (r Request) RunURL() string {
	return r.RepoURL + "/actions/runs/" + r.RunID
}

// Result is the terminal state of one attempt.
type Result struct {
	Outcome       Outcome
	Target        string
	WorkingBranch string
	// Existed reports whether the working branch was already on the remote,
	// which makes publication an update of an earlier attempt.
	Existed bool
	// ExistingPR is the open backport pull request found for an existing
	// working branch, if any.
	ExistingPR *provider.PRInfo
	// Transcript is the combined output of the patch application.
	Transcript string
	Err        error
}

// Failed reports whether the attempt should be surfaced as a failure.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// session is the mutable state of one run. It is never shared.
type session struct {
	req        Request
	target     string
	working    string
	existed    bool
	existingPR *provider.PRInfo
	patchPath  string
	transcript string
}

func (s *session) result(outcome Outcome, err error) *Result {
	return &Result{
		Outcome:       outcome,
		Target:        s.target,
		WorkingBranch: s.working,
		Existed:       s.existed,
		ExistingPR:    s.existingPR,
		Transcript:    s.transcript,
		Err:           err,
	}
}
