package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/jsonc"

	"github.com/alanmeadows/backport/internal/backport"
	"github.com/alanmeadows/backport/internal/config"
	"github.com/alanmeadows/backport/internal/provider"
	"github.com/alanmeadows/backport/internal/repo/repotest"
	"github.com/alanmeadows/backport/internal/store"
)

func TestParseCommand(t *testing.T) {
	var out bytes.Buffer
	parseCmd.SetOut(&out)
	parsePR = 42
	t.Cleanup(func() { parsePR = 0 })

	require.NoError(t, parseCmd.RunE(parseCmd, []string{"please", "/backport to release/8.0"}))
	assert.Equal(t, "target: release/8.0\nbranch: backport/pr-42-to-release/8.0\n", out.String())
}

func TestParseCommand_NoTrigger(t *testing.T) {
	parseCmd.SetOut(&bytes.Buffer{})
	err := parseCmd.RunE(parseCmd, []string{"LGTM"})
	assert.ErrorIs(t, err, backport.ErrNoTrigger)
}

func TestParseConfigValue(t *testing.T) {
	assert.Equal(t, true, parseConfigValue("true"))
	assert.Equal(t, int64(8), parseConfigValue("8"))
	assert.Equal(t, 1.5, parseConfigValue("1.5"))
	assert.Equal(t, "upstream", parseConfigValue("upstream"))
}

func TestSetConfigValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".backport", "backport.jsonc")

	require.NoError(t, setConfigValue(path, "git.remote", "upstream"))
	require.NoError(t, setConfigValue(path, "reports.enabled", false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(jsonc.ToJSON(data), &got))
	assert.Equal(t, "upstream", got["git"].(map[string]any)["remote"])
	assert.Equal(t, false, got["reports"].(map[string]any)["enabled"])
}

func TestRedactConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GitHub.Token = "ghp_secret"

	redacted := redactConfig(&cfg)
	assert.Equal(t, "***", redacted.GitHub.Token)
	assert.Equal(t, "ghp_secret", cfg.GitHub.Token, "original is untouched")
}

func TestDetectHost(t *testing.T) {
	cfg := config.DefaultConfig()

	b, err := detectHost(&cfg, "https://github.com/dotnet/runtime/pull/42.patch")
	require.NoError(t, err)
	assert.Equal(t, "github", b.Name())

	_, err = detectHost(&cfg, "https://gitlab.com/group/project/-/merge_requests/1.patch")
	assert.Error(t, err)
}

func TestNewReport(t *testing.T) {
	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req := backport.Request{Owner: "dotnet", Repo: "runtime", PRNumber: 42, RunID: "7"}
	res := &backport.Result{
		Outcome:       backport.OutcomeConflict,
		Target:        "release/8.0",
		WorkingBranch: "backport/pr-42-to-release/8.0",
		Existed:       true,
		ExistingPR:    &provider.PRInfo{Number: 77, URL: "https://github.com/dotnet/runtime/pull/77"},
		Transcript:    "Applying: Fix beta\n",
		Err:           errors.New("apply: exit status 1"),
	}

	rep := newReport(req, res, finished)
	assert.Equal(t, &store.Report{
		RunID:         "7",
		Owner:         "dotnet",
		Repo:          "runtime",
		PR:            42,
		Target:        "release/8.0",
		WorkingBranch: "backport/pr-42-to-release/8.0",
		Outcome:       "conflict",
		Existed:       true,
		ExistingPR:    77,
		ExistingPRURL: "https://github.com/dotnet/runtime/pull/77",
		Error:         "apply: exit status 1",
		Finished:      finished,
		Transcript:    "Applying: Fix beta\n",
	}, rep)
}

// TestRunCommand drives the run command end to end against a local remote and
// a fake GitHub API.
func TestRunCommand(t *testing.T) {
	fixture := repotest.New(t)
	sha := fixture.Commit(t, "main", "alpha\nBETA\ngamma\n", "Fix beta")
	patch := fixture.Patch(t, sha)

	var (
		mu       sync.Mutex
		comments []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/dotnet/runtime/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write(patch)
	})
	mux.HandleFunc("POST /api/v3/repos/dotnet/runtime/issues/42/comments", func(w http.ResponseWriter, r *http.Request) {
		var c gh.IssueComment
		json.NewDecoder(r.Body).Decode(&c)
		mu.Lock()
		comments = append(comments, c.GetBody())
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&c)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	payload := fmt.Sprintf(`{
	  "action": "created",
	  "issue": {"number": 42, "pull_request": {"patch_url": "%s/dotnet/runtime/pull/42.patch"}},
	  "comment": {"body": "/backport to release/8.0"},
	  "repository": {"name": "runtime", "html_url": "https://github.com/dotnet/runtime", "owner": {"login": "dotnet"}}
	}`, server.URL)
	eventPath := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(eventPath, []byte(payload), 0644))

	cfg := config.DefaultConfig()
	cfg.GitHub.Token = "test-token"
	cfg.GitHub.APIURL = server.URL + "/api/v3/"
	cfg.Reports.Dir = t.TempDir()
	prevConfig := appConfig
	appConfig = &cfg
	t.Cleanup(func() { appConfig = prevConfig })

	runEventName, runEventPath, runID, runWorkDir = "issue_comment", eventPath, "31337", fixture.Work
	t.Cleanup(func() { runEventName, runEventPath, runID, runWorkDir = "", "", "", "" })

	var out bytes.Buffer
	runCmd.SetOut(&out)
	runCmd.SetContext(t.Context())
	require.NoError(t, runCmd.RunE(runCmd, nil))

	assert.Equal(t, "Pushed backport/pr-42-to-release/8.0\n", out.String())
	assert.NotEmpty(t, fixture.RemoteRef(t, "backport/pr-42-to-release/8.0"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Started backporting to release/8.0: https://github.com/dotnet/runtime/actions/runs/31337"}, comments)

	rep, err := store.NewReports(cfg.Reports.Dir).Read(t.Context(), "31337")
	require.NoError(t, err)
	assert.Equal(t, "published", rep.Outcome)
	assert.Equal(t, 42, rep.PR)
}
