package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/alanmeadows/backport/internal/provider"
)

// maxPatchSize caps a downloaded patch at 50 MB.
const maxPatchSize = 50 * 1024 * 1024

// mediaTypePatch asks the pulls endpoint for the mailbox-format patch.
const mediaTypePatch = "application/vnd.github.v3.patch"

// patchPathPattern matches /{owner}/{repo}/pull/{number}.patch.
var patchPathPattern = regexp.MustCompile(`^/([^/]+)/([^/]+)/pull/(\d+)\.patch$`)

// prIdentifier holds parsed components of a GitHub PR reference.
type prIdentifier struct {
	Owner  string
	Repo   string
	Number int
}

// Backend implements provider.Backend for GitHub and GitHub Enterprise Server.
type Backend struct {
	client     *gh.Client
	httpClient *http.Client
	gqlOnce    sync.Once
	gqlClient  *githubv4.Client
	graphqlURL string
	webHost    string
	// patchLimit overrides maxPatchSize when positive.
	patchLimit int64
}

// NewBackend creates a GitHub backend. apiURL is empty for github.com, or the
// REST root of a GitHub Enterprise Server (https://host/api/v3/).
// Requests go through go-github-ratelimit so secondary rate limits are waited out.
func NewBackend(token, apiURL string) (*Backend, error) {
	var base http.RoundTripper
	if token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   http.DefaultTransport,
		}
	}
	httpClient := github_ratelimit.NewClient(base)
	client := gh.NewClient(httpClient)

	b := &Backend{
		client:     client,
		httpClient: httpClient,
		webHost:    "github.com",
	}

	if apiURL != "" {
		var err error
		b.client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL %q: %w", apiURL, err)
		}
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("parsing API URL %q: %w", apiURL, err)
		}
		b.webHost = strings.ToLower(u.Hostname())
		b.graphqlURL = fmt.Sprintf("%s://%s/api/graphql", u.Scheme, u.Host)
	}
	return b, nil
}

// Name returns "github".
func (b *Backend) Name() string {
	return "github"
}

// MatchesURL returns true if the URL belongs to the GitHub instance this
// backend talks to.
func (b *Backend) MatchesURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if b.webHost == "github.com" {
		return host == "github.com" || host == "www.github.com" || host == "api.github.com"
	}
	return host == b.webHost
}

// PostComment posts a general comment on an issue or pull request.
func (b *Backend) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := b.client.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("failed to post comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// FetchPatch downloads a change in mailbox format. Pull request .patch URLs are
// served through the REST API so private repositories work with the token;
// any other URL is fetched directly.
func (b *Backend) FetchPatch(ctx context.Context, patchURL string) ([]byte, error) {
	if id, ok := parsePatchURL(patchURL); ok {
		return b.pullPatch(ctx, id)
	}
	return b.download(ctx, patchURL)
}

// FindOpenPR looks up the open pull request whose head branch is branch using
// the GraphQL API.
func (b *Backend) FindOpenPR(ctx context.Context, owner, repo, branch string) (*provider.PRInfo, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number      int    `graphql:"number"`
					Title       string `graphql:"title"`
					URL         string `graphql:"url"`
					BaseRefName string `graphql:"baseRefName"`
				}
			} `graphql:"pullRequests(headRefName: $head, states: [OPEN], first: 1)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
		"head":  githubv4.String(branch),
	}

	if err := b.getGraphQLClient().Query(ctx, &query, vars); err != nil {
		return nil, fmt.Errorf("failed to query pull requests for %s: %w", branch, err)
	}

	nodes := query.Repository.PullRequests.Nodes
	if len(nodes) == 0 {
		return nil, nil
	}
	pr := nodes[0]
	return &provider.PRInfo{
		Number:     pr.Number,
		Title:      pr.Title,
		URL:        pr.URL,
		BaseBranch: pr.BaseRefName,
	}, nil
}

// --- Internal helpers ---

// parsePatchURL extracts owner, repo and number from a pull request patch URL.
func parsePatchURL(rawURL string) (*prIdentifier, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	m := patchPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, false
	}
	num, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, false
	}
	return &prIdentifier{Owner: m[1], Repo: m[2], Number: num}, true
}

// pullPatch streams a pull request's patch from the REST API so the size cap
// applies before the whole body is buffered.
func (b *Backend) pullPatch(ctx context.Context, id *prIdentifier) ([]byte, error) {
	u := fmt.Sprintf("repos/%s/%s/pulls/%d", id.Owner, id.Repo, id.Number)
	req, err := b.client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create patch request: %w", err)
	}
	req.Header.Set("Accept", mediaTypePatch)

	resp, err := b.client.BareDo(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get patch for %s/%s#%d: %w", id.Owner, id.Repo, id.Number, err)
	}
	defer resp.Body.Close()

	body, err := b.readPatch(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("patch for %s/%s#%d: %w", id.Owner, id.Repo, id.Number, err)
	}
	return body, nil
}

// readPatch reads r up to the patch size cap.
func (b *Backend) readPatch(r io.Reader) ([]byte, error) {
	limit := b.patchLimit
	if limit <= 0 {
		limit = maxPatchSize
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read patch body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("patch exceeds %d bytes", limit)
	}
	return body, nil
}

// download fetches a URL with the authenticated client.
func (b *Backend) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create patch request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download patch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("patch download returned status %d", resp.StatusCode)
	}

	body, err := b.readPatch(resp.Body)
	if err != nil {
		return nil, err
	}

	slog.Debug("downloaded patch", "url", rawURL, "bytes", len(body))
	return body, nil
}

// getGraphQLClient returns (and lazily creates) the GitHub GraphQL client.
// It shares the authenticated, rate-limited HTTP client with REST calls.
func (b *Backend) getGraphQLClient() *githubv4.Client {
	b.gqlOnce.Do(func() {
		if b.graphqlURL != "" {
			b.gqlClient = githubv4.NewEnterpriseClient(b.graphqlURL, b.httpClient)
			return
		}
		b.gqlClient = githubv4.NewClient(b.httpClient)
	})
	return b.gqlClient
}

// Verify Backend implements provider.Backend at compile time.
var _ provider.Backend = (*Backend)(nil)
