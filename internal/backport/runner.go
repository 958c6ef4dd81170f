package backport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alanmeadows/backport/internal/logging"
	"github.com/alanmeadows/backport/internal/provider"
)

// ErrDirtyCheckout is returned when the checkout still holds changes after it
// was cleaned, so a patch would not be replayed on the pristine target.
var ErrDirtyCheckout = errors.New("checkout is not clean after reset")

// Repository is the local checkout a run operates on.
type Repository interface {
	Clean(ctx context.Context) error
	Dirty(ctx context.Context) (bool, error)
	CheckoutUpstream(ctx context.Context, branch string) error
	ConfigureIdentity(ctx context.Context, name, email string) error
	CreateBranch(ctx context.Context, name string) error
	RemoteBranchExists(ctx context.Context, branch string) (bool, error)
	ApplyPatch(ctx context.Context, patchPath string, transcript io.Writer) (string, error)
	AbortApply(ctx context.Context) error
	ForcePush(ctx context.Context, branch string) error
}

// Host is the code-hosting API a run reports to and reads the change from.
type Host interface {
	PostComment(ctx context.Context, owner, repo string, number int, body string) error
	FetchPatch(ctx context.Context, patchURL string) ([]byte, error)
	FindOpenPR(ctx context.Context, owner, repo, branch string) (*provider.PRInfo, error)
}

// Recorder persists the result of a finished run.
type Recorder interface {
	Record(ctx context.Context, req Request, res *Result) error
}

// Identity is the committer identity used when replaying the patch.
type Identity struct {
	Name  string
	Email string
}

// Runner executes backport attempts.
type Runner struct {
	repo     Repository
	host     Host
	identity Identity
	recorder Recorder
}

// NewRunner creates a Runner. recorder may be nil.
func NewRunner(repo Repository, host Host, identity Identity, recorder Recorder) *Runner {
	return &Runner{repo: repo, host: host, identity: identity, recorder: recorder}
}

// Run performs one backport attempt and returns its terminal Result. Every
// failure is reported through Result.Err; Run itself never panics on a
// collaborator error.
func (r *Runner) Run(ctx context.Context, req Request) *Result {
	res := r.run(ctx, req)

	log := logging.ForRun(req.RunID, req.PRNumber, res.Target)
	if res.Err != nil {
		log.Error("backport failed", "outcome", res.Outcome, "branch", res.WorkingBranch, "error", res.Err)
	} else {
		log.Info("backport published", "branch", res.WorkingBranch, "updated", res.Existed)
	}

	// Nothing has happened for an unparseable comment, so there is nothing to record.
	if r.recorder != nil && res.Outcome != OutcomeParseFailure {
		if err := r.recorder.Record(ctx, req, res); err != nil {
			log.Warn("failed to record run report", "error", err)
		}
	}
	return res
}

func (r *Runner) run(ctx context.Context, req Request) *Result {
	s := &session{req: req}

	target, err := ParseTrigger(req.CommentBody)
	if err != nil {
		return s.result(OutcomeParseFailure, err)
	}
	s.target = target
	s.working = WorkingBranch(req.PRNumber, target)

	log := logging.ForRun(req.RunID, req.PRNumber, target)
	log.Info("backport requested", "branch", s.working)

	if err := r.host.PostComment(ctx, req.Owner, req.Repo, req.PRNumber, startComment(target, req)); err != nil {
		// Without a start comment there is nothing to follow up on.
		return s.result(OutcomeCommandFailure, &StepError{Outcome: OutcomeCommandFailure, Step: StepNotifyStart, Err: err})
	}

	if err := r.prepare(ctx, s); err != nil {
		return r.fail(ctx, s, err)
	}
	if err := r.probe(ctx, s, log); err != nil {
		return r.fail(ctx, s, err)
	}
	if err := r.apply(ctx, s, log); err != nil {
		return r.fail(ctx, s, err)
	}
	if err := r.repo.ForcePush(ctx, s.working); err != nil {
		return r.fail(ctx, s, &StepError{Outcome: OutcomeCommandFailure, Step: StepPublish, Err: err})
	}
	return s.result(OutcomePublished, nil)
}

// prepare resets the checkout onto the upstream tip of the target branch.
func (r *Runner) prepare(ctx context.Context, s *session) error {
	wrap := func(err error) error {
		return &StepError{Outcome: OutcomeCommandFailure, Step: StepPrepare, Err: err}
	}
	if err := r.repo.Clean(ctx); err != nil {
		return wrap(err)
	}
	dirty, err := r.repo.Dirty(ctx)
	if err != nil {
		return wrap(err)
	}
	if dirty {
		return wrap(ErrDirtyCheckout)
	}
	if err := r.repo.CheckoutUpstream(ctx, s.target); err != nil {
		return wrap(err)
	}
	if err := r.repo.ConfigureIdentity(ctx, r.identity.Name, r.identity.Email); err != nil {
		return wrap(err)
	}
	return nil
}

// probe records whether an earlier attempt already published the working branch.
func (r *Runner) probe(ctx context.Context, s *session, log *slog.Logger) error {
	exists, err := r.repo.RemoteBranchExists(ctx, s.working)
	if err != nil {
		return &StepError{Outcome: OutcomeCommandFailure, Step: StepProbe, Err: err}
	}
	s.existed = exists
	if !exists {
		log.Info("working branch is new", "branch", s.working)
		return nil
	}

	log.Info("working branch exists, it will be force-updated", "branch", s.working)
	pr, err := r.host.FindOpenPR(ctx, s.req.Owner, s.req.Repo, s.working)
	if err != nil {
		log.Warn("failed to look up existing backport pull request", "error", err)
		return nil
	}
	if pr != nil {
		s.existingPR = pr
		log.Info("found existing backport pull request", "number", pr.Number, "url", pr.URL)
	}
	return nil
}

// apply creates the working branch and replays the pull request's patch on it.
func (r *Runner) apply(ctx context.Context, s *session, log *slog.Logger) error {
	if err := r.repo.CreateBranch(ctx, s.working); err != nil {
		return &StepError{Outcome: OutcomeCommandFailure, Step: StepBranch, Err: err}
	}

	path, err := r.downloadPatch(ctx, s.req.PatchURL)
	if err != nil {
		return &StepError{Outcome: OutcomeCommandFailure, Step: StepFetchPatch, Err: err}
	}
	defer os.Remove(path)
	s.patchPath = path

	lw := logging.NewLineWriter(log, "git am")
	transcript, err := r.repo.ApplyPatch(ctx, s.patchPath, lw)
	lw.Flush()
	s.transcript = transcript
	if err == nil {
		return nil
	}

	// A cancelled run is not a conflict.
	if ctx.Err() != nil {
		return &StepError{Outcome: OutcomeCommandFailure, Step: StepApply, Err: err}
	}
	if abortErr := r.repo.AbortApply(ctx); abortErr != nil {
		log.Warn("failed to abort patch application", "error", abortErr)
	}
	return &StepError{Outcome: OutcomeConflict, Step: StepApply, Err: err}
}

func (r *Runner) downloadPatch(ctx context.Context, patchURL string) (string, error) {
	patch, err := r.host.FetchPatch(ctx, patchURL)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "backport-*.patch")
	if err != nil {
		return "", fmt.Errorf("creating patch file: %w", err)
	}
	if _, err := f.Write(patch); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing patch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing patch file: %w", err)
	}
	return f.Name(), nil
}

// fail posts the terminal failure comment for err and builds the Result.
func (r *Runner) fail(ctx context.Context, s *session, err error) *Result {
	outcome := OutcomeCommandFailure
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		outcome = stepErr.Outcome
	}

	var body string
	if outcome == OutcomeConflict {
		body = conflictComment(s.target, s.transcript, s.existingPR)
	} else {
		body = failureComment(s.target, err, s.existingPR)
	}

	if postErr := r.host.PostComment(ctx, s.req.Owner, s.req.Repo, s.req.PRNumber, body); postErr != nil {
		err = errors.Join(err, &StepError{Outcome: outcome, Step: StepNotifyFinal, Err: postErr})
	}
	return s.result(outcome, err)
}
