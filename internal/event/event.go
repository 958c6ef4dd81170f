// Package event turns a GitHub Actions trigger event into a backport request.
package event

import (
	"errors"
	"fmt"
	"os"

	gh "github.com/google/go-github/v82/github"
	"github.com/google/uuid"

	"github.com/alanmeadows/backport/internal/backport"
)

// ErrUnsupportedEvent is returned for events other than a newly created
// comment on a pull request.
var ErrUnsupportedEvent = errors.New("unsupported event")

// IssueComment is the only event name a run accepts.
const IssueComment = "issue_comment"

// Envelope is a raw event as delivered by the CI harness.
type Envelope struct {
	// Name is the event kind, e.g. "issue_comment".
	Name string
	// Payload is the JSON webhook body.
	Payload []byte
	// RunID identifies the CI run handling the event.
	RunID string
}

// Decode validates the envelope and builds the Request for it.
func Decode(env Envelope) (backport.Request, error) {
	if env.Name != IssueComment {
		return backport.Request{}, fmt.Errorf("%w: %q, only %s is handled", ErrUnsupportedEvent, env.Name, IssueComment)
	}

	parsed, err := gh.ParseWebHook(env.Name, env.Payload)
	if err != nil {
		return backport.Request{}, fmt.Errorf("parsing %s payload: %w", env.Name, err)
	}
	ev, ok := parsed.(*gh.IssueCommentEvent)
	if !ok {
		return backport.Request{}, fmt.Errorf("%w: unexpected payload type %T", ErrUnsupportedEvent, parsed)
	}

	if action := ev.GetAction(); action != "created" {
		return backport.Request{}, fmt.Errorf("%w: comment action %q", ErrUnsupportedEvent, action)
	}
	issue := ev.GetIssue()
	if issue == nil || !issue.IsPullRequest() {
		return backport.Request{}, fmt.Errorf("%w: comment on issue #%d is not on a pull request", ErrUnsupportedEvent, issue.GetNumber())
	}

	repo := ev.GetRepo()
	req := backport.Request{
		CommentBody: ev.GetComment().GetBody(),
		PRNumber:    issue.GetNumber(),
		Owner:       repo.GetOwner().GetLogin(),
		Repo:        repo.GetName(),
		RunID:       env.RunID,
		PatchURL:    issue.GetPullRequestLinks().GetPatchURL(),
		RepoURL:     repo.GetHTMLURL(),
	}
	if req.Owner == "" || req.Repo == "" || req.PRNumber == 0 {
		return backport.Request{}, fmt.Errorf("%s payload is missing repository or pull request identity", env.Name)
	}
	if req.PatchURL == "" {
		return backport.Request{}, fmt.Errorf("%s payload has no patch URL for #%d", env.Name, req.PRNumber)
	}
	return req, nil
}

// Load reads the payload at path into an Envelope. An empty runID gets a
// random one so local invocations still have a stable report name.
func Load(name, path, runID string) (Envelope, error) {
	if name == "" {
		return Envelope{}, errors.New("event name is required (GITHUB_EVENT_NAME or --event-name)")
	}
	if path == "" {
		return Envelope{}, errors.New("event path is required (GITHUB_EVENT_PATH or --event-path)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, fmt.Errorf("reading event payload: %w", err)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return Envelope{Name: name, Payload: data, RunID: runID}, nil
}

// FromEnv returns the event name, payload path and run id GitHub Actions
// exposes to a job.
func FromEnv() (name, path, runID string) {
	return os.Getenv("GITHUB_EVENT_NAME"), os.Getenv("GITHUB_EVENT_PATH"), os.Getenv("GITHUB_RUN_ID")
}
