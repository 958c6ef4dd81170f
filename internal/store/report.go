package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const reportExt = ".md"

// Report is the operator-facing record of one finished backport run.
type Report struct {
	RunID         string
	Owner         string
	Repo          string
	PR            int
	Target        string
	WorkingBranch string
	Outcome       string
	Existed       bool
	// ExistingPR is the number of the open backport pull request the run
	// would have updated, or zero.
	ExistingPR    int
	ExistingPRURL string
	Error         string
	Finished      time.Time
	// Transcript is the patch application output, stored as the body.
	Transcript string
}

// Reports stores run reports as markdown documents in one directory.
type Reports struct {
	dir     string
	timeout time.Duration
}

// NewReports returns a report store rooted at dir.
func NewReports(dir string) *Reports {
	return &Reports{dir: dir, timeout: DefaultLockTimeout}
}

// Path returns the file a run's report lives in.
func (r *Reports) Path(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(r.dir, runID+reportExt), nil
}

// Write stores rep, replacing any earlier report for the same run.
func (r *Reports) Write(ctx context.Context, rep *Report) error {
	path, err := r.Path(rep.RunID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return WithLock(ctx, path, r.timeout, func() error {
		return WriteDocument(path, encodeReport(rep))
	})
}

// Read loads the report for runID.
func (r *Reports) Read(ctx context.Context, runID string) (*Report, error) {
	path, err := r.Path(runID)
	if err != nil {
		return nil, err
	}
	var rep *Report
	err = WithReadLock(ctx, path, r.timeout, func() error {
		doc, err := ReadDocument(path)
		if err != nil {
			return err
		}
		rep = decodeReport(doc)
		if rep.RunID == "" {
			rep.RunID = runID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// List returns every stored report, most recently finished first. A missing
// directory yields no reports.
func (r *Reports) List(ctx context.Context) ([]*Report, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading report directory: %w", err)
	}

	var reports []*Report
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != reportExt {
			continue
		}
		rep, err := r.Read(ctx, strings.TrimSuffix(name, reportExt))
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Finished.After(reports[j].Finished)
	})
	return reports, nil
}

func encodeReport(rep *Report) *Document {
	fm := map[string]any{
		"run_id":         rep.RunID,
		"owner":          rep.Owner,
		"repo":           rep.Repo,
		"pr":             rep.PR,
		"target":         rep.Target,
		"working_branch": rep.WorkingBranch,
		"outcome":        rep.Outcome,
		"existed":        rep.Existed,
		"finished":       FormatTime(rep.Finished),
	}
	if rep.ExistingPR != 0 {
		fm["existing_pr"] = rep.ExistingPR
		fm["existing_pr_url"] = rep.ExistingPRURL
	}
	if rep.Error != "" {
		fm["error"] = rep.Error
	}
	return &Document{Frontmatter: fm, Body: rep.Transcript}
}

func decodeReport(doc *Document) *Report {
	fm := doc.Frontmatter
	return &Report{
		RunID:         GetString(fm, "run_id"),
		Owner:         GetString(fm, "owner"),
		Repo:          GetString(fm, "repo"),
		PR:            GetInt(fm, "pr"),
		Target:        GetString(fm, "target"),
		WorkingBranch: GetString(fm, "working_branch"),
		Outcome:       GetString(fm, "outcome"),
		Existed:       GetBool(fm, "existed"),
		ExistingPR:    GetInt(fm, "existing_pr"),
		ExistingPRURL: GetString(fm, "existing_pr_url"),
		Error:         GetString(fm, "error"),
		Finished:      GetTime(fm, "finished"),
		Transcript:    strings.TrimPrefix(doc.Body, "\n"),
	}
}
