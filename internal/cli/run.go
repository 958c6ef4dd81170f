package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alanmeadows/backport/internal/backport"
	"github.com/alanmeadows/backport/internal/config"
	"github.com/alanmeadows/backport/internal/event"
	"github.com/alanmeadows/backport/internal/provider"
	"github.com/alanmeadows/backport/internal/provider/github"
	"github.com/alanmeadows/backport/internal/repo"
	"github.com/alanmeadows/backport/internal/store"
	"github.com/spf13/cobra"
)

var (
	runEventName string
	runEventPath string
	runID        string
	runWorkDir   string
)

func init() {
	runCmd.Flags().StringVar(&runEventName, "event-name", "", "Event name (default $GITHUB_EVENT_NAME)")
	runCmd.Flags().StringVar(&runEventPath, "event-path", "", "Path to the event payload JSON (default $GITHUB_EVENT_PATH)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "CI run id used in the start comment (default $GITHUB_RUN_ID)")
	runCmd.Flags().StringVar(&runWorkDir, "work-dir", "", "Checkout to operate on (default git.work_dir, then the current directory)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Handle one trigger event",
	Long: `Handle one issue_comment event from GitHub Actions.

The event is read from GITHUB_EVENT_NAME / GITHUB_EVENT_PATH and the run id
from GITHUB_RUN_ID, unless overridden by flags. The checkout in the work
directory is reset, so it must be dedicated to backport runs.

The command exits non-zero when the comment holds no backport command, the
patch does not apply, or any step fails.`,
	Example: `  backport run
  backport run --event-name issue_comment --event-path event.json --run-id 42`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name, path, id := event.FromEnv()
		if runEventName != "" {
			name = runEventName
		}
		if runEventPath != "" {
			path = runEventPath
		}
		if runID != "" {
			id = runID
		}

		env, err := event.Load(name, path, id)
		if err != nil {
			return err
		}
		req, err := event.Decode(env)
		if err != nil {
			return err
		}

		workDir, err := resolveWorkDir(appConfig)
		if err != nil {
			return err
		}

		host, err := detectHost(appConfig, req.PatchURL)
		if err != nil {
			return err
		}

		git := repo.NewGit(repo.ExecRunner{}, workDir, appConfig.Git.Remote)
		warnOnForeignRemote(ctx, git, req)

		var recorder backport.Recorder
		if appConfig.Reports.IsEnabled() {
			recorder = &reportRecorder{reports: store.NewReports(appConfig.Reports.Dir)}
		}

		runner := backport.NewRunner(git, host, backport.Identity{
			Name:  appConfig.Git.UserName,
			Email: appConfig.Git.UserEmail,
		}, recorder)

		var res *backport.Result
		lockPath := filepath.Join(workDir, ".git", "backport")
		err = store.WithLock(ctx, lockPath, appConfig.Git.ParseLockTimeout(), func() error {
			res = runner.Run(ctx, req)
			return nil
		})
		if err != nil {
			return fmt.Errorf("locking work dir %s: %w", workDir, err)
		}

		if res.Failed() {
			return fmt.Errorf("backport %s: %w", res.Outcome, res.Err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s\n", res.WorkingBranch)
		return nil
	},
}

func resolveWorkDir(cfg *config.Config) (string, error) {
	dir := runWorkDir
	if dir == "" {
		dir = cfg.Git.WorkDir
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving work dir %s: %w", dir, err)
	}
	return abs, nil
}

// detectHost picks the backend serving patchURL.
func detectHost(cfg *config.Config, patchURL string) (provider.Backend, error) {
	gh, err := github.NewBackend(cfg.GitHub.Token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, err
	}
	b, err := provider.NewRegistry(gh).Detect(patchURL)
	if err != nil {
		return nil, fmt.Errorf("patch URL does not belong to the configured GitHub instance: %w", err)
	}
	return b, nil
}

// warnOnForeignRemote logs when the checkout's remote is not the repository
// the event came from. The run still proceeds: mirrors and forks are legitimate.
func warnOnForeignRemote(ctx context.Context, git *repo.Git, req backport.Request) {
	url, err := git.RemoteURL(ctx)
	if err != nil {
		slog.Warn("could not read remote URL", "remote", git.Remote(), "error", err)
		return
	}
	if !repo.SameRepository(url, req.Owner, req.Repo) {
		slog.Warn("remote does not point at the event repository",
			"remote", git.Remote(), "url", url, "repository", req.Owner+"/"+req.Repo)
	}
}

// reportRecorder writes each finished run to the report store.
type reportRecorder struct {
	reports *store.Reports
}

func (r *reportRecorder) Record(ctx context.Context, req backport.Request, res *backport.Result) error {
	return r.reports.Write(ctx, newReport(req, res, time.Now()))
}

func newReport(req backport.Request, res *backport.Result, finished time.Time) *store.Report {
	rep := &store.Report{
		RunID:         req.RunID,
		Owner:         req.Owner,
		Repo:          req.Repo,
		PR:            req.PRNumber,
		Target:        res.Target,
		WorkingBranch: res.WorkingBranch,
		Outcome:       res.Outcome.String(),
		Existed:       res.Existed,
		Finished:      finished,
		Transcript:    res.Transcript,
	}
	if res.ExistingPR != nil {
		rep.ExistingPR = res.ExistingPR.Number
		rep.ExistingPRURL = res.ExistingPR.URL
	}
	if res.Err != nil {
		rep.Error = res.Err.Error()
	}
	return rep
}
