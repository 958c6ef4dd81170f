package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gh "github.com/google/go-github/v82/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/backport/internal/provider"
)

// newTestBackend creates a Backend wired to a test HTTP server.
func newTestBackend(t *testing.T, handler http.Handler) (*Backend, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gh.NewClient(nil).WithEnterpriseURLs(server.URL+"/", server.URL+"/")
	require.NoError(t, err)

	return &Backend{
		client:     client,
		httpClient: server.Client(),
		graphqlURL: server.URL + "/api/graphql",
		webHost:    "127.0.0.1",
	}, server
}

func TestName(t *testing.T) {
	b := &Backend{}
	assert.Equal(t, "github", b.Name())
}

func TestMatchesURL(t *testing.T) {
	b := &Backend{webHost: "github.com"}
	tests := []struct {
		url     string
		matches bool
	}{
		{"https://github.com/owner/repo/pull/123.patch", true},
		{"https://www.github.com/owner/repo/pull/456", true},
		{"https://api.github.com/repos/owner/repo/pulls/1", true},
		{"https://ghe.example.com/owner/repo/pull/1.patch", false},
		{"https://gitlab.com/owner/repo", false},
		{"://not-a-url", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.matches, b.MatchesURL(tt.url))
		})
	}
}

func TestMatchesURL_Enterprise(t *testing.T) {
	b, err := NewBackend("", "https://GHE.example.com/api/v3/")
	require.NoError(t, err)

	assert.True(t, b.MatchesURL("https://ghe.example.com/owner/repo/pull/1.patch"))
	assert.False(t, b.MatchesURL("https://github.com/owner/repo/pull/1.patch"))
}

func TestNewBackend_GraphQLURL(t *testing.T) {
	b, err := NewBackend("token", "")
	require.NoError(t, err)
	assert.Empty(t, b.graphqlURL)
	assert.Equal(t, "github.com", b.webHost)

	b, err = NewBackend("token", "https://ghe.example.com/api/v3/")
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/graphql", b.graphqlURL)
	assert.Equal(t, "ghe.example.com", b.webHost)
}

func TestParsePatchURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *prIdentifier
		ok    bool
	}{
		{
			name:  "github.com patch",
			input: "https://github.com/dotnet/runtime/pull/42.patch",
			want:  &prIdentifier{Owner: "dotnet", Repo: "runtime", Number: 42},
			ok:    true,
		},
		{
			name:  "enterprise patch",
			input: "https://ghe.example.com/team/svc/pull/7.patch",
			want:  &prIdentifier{Owner: "team", Repo: "svc", Number: 7},
			ok:    true,
		},
		{name: "diff suffix", input: "https://github.com/dotnet/runtime/pull/42.diff"},
		{name: "pull page", input: "https://github.com/dotnet/runtime/pull/42"},
		{name: "arbitrary file", input: "https://example.com/files/change.patch"},
		{name: "not a url", input: "://bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePatchURL(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostComment(t *testing.T) {
	var receivedBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/repos/testowner/testrepo/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		var comment gh.IssueComment
		json.NewDecoder(r.Body).Decode(&comment)
		receivedBody = comment.GetBody()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&gh.IssueComment{ID: gh.Ptr(int64(999)), Body: comment.Body})
	})

	backend, _ := newTestBackend(t, mux)
	err := backend.PostComment(t.Context(), "testowner", "testrepo", 5, "Started backporting to release/8.0")
	require.NoError(t, err)
	assert.Equal(t, "Started backporting to release/8.0", receivedBody)
}

func TestPostComment_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/repos/testowner/testrepo/issues/5/comments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "Resource not accessible by integration"})
	})

	backend, _ := newTestBackend(t, mux)
	err := backend.PostComment(t.Context(), "testowner", "testrepo", 5, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testowner/testrepo#5")
}

func TestFetchPatch_ViaAPI(t *testing.T) {
	const patch = "From abc Mon Sep 17 00:00:00 2001\nSubject: [PATCH] Fix beta\n"
	var accept string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/testowner/testrepo/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		fmt.Fprint(w, patch)
	})

	backend, _ := newTestBackend(t, mux)
	got, err := backend.FetchPatch(t.Context(), "https://github.com/testowner/testrepo/pull/42.patch")
	require.NoError(t, err)
	assert.Equal(t, patch, string(got))
	assert.Equal(t, "application/vnd.github.v3.patch", accept)
}

func TestFetchPatch_ViaAPITooLarge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/testowner/testrepo/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 64))
	})

	backend, _ := newTestBackend(t, mux)
	backend.patchLimit = 32
	_, err := backend.FetchPatch(t.Context(), "https://github.com/testowner/testrepo/pull/42.patch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patch exceeds 32 bytes")
}

func TestFetchPatch_ViaAPIStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/testowner/testrepo/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
	})

	backend, _ := newTestBackend(t, mux)
	_, err := backend.FetchPatch(t.Context(), "https://github.com/testowner/testrepo/pull/42.patch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testowner/testrepo#42")
}

func TestFetchPatch_DownloadTooLarge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/big.patch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 64))
	})

	backend, server := newTestBackend(t, mux)
	backend.patchLimit = 32
	_, err := backend.FetchPatch(t.Context(), server.URL+"/files/big.patch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patch exceeds 32 bytes")
}

func TestFetchPatch_Download(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/change.patch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Subject: [PATCH] direct\n")
	})

	backend, server := newTestBackend(t, mux)
	got, err := backend.FetchPatch(t.Context(), server.URL+"/files/change.patch")
	require.NoError(t, err)
	assert.Equal(t, "Subject: [PATCH] direct\n", string(got))
}

func TestFetchPatch_DownloadStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/missing.patch", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	backend, server := newTestBackend(t, mux)
	_, err := backend.FetchPatch(t.Context(), server.URL+"/files/missing.patch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFindOpenPR(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		query = req.Query
		assert.Equal(t, "backport/pr-42-to-release/8.0", req.Variables["head"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"repository":{"pullRequests":{"nodes":[
			{"number":77,"title":"[release/8.0] Fix beta","url":"https://github.com/testowner/testrepo/pull/77","baseRefName":"release/8.0"}
		]}}}}`)
	})

	backend, _ := newTestBackend(t, mux)
	pr, err := backend.FindOpenPR(t.Context(), "testowner", "testrepo", "backport/pr-42-to-release/8.0")
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, 77, pr.Number)
	assert.Equal(t, "[release/8.0] Fix beta", pr.Title)
	assert.Equal(t, "release/8.0", pr.BaseBranch)
	assert.Contains(t, query, "pullRequests")
}

func TestFindOpenPR_None(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/graphql", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"repository":{"pullRequests":{"nodes":[]}}}}`)
	})

	backend, _ := newTestBackend(t, mux)
	pr, err := backend.FindOpenPR(t.Context(), "testowner", "testrepo", "backport/pr-1-to-main")
	require.NoError(t, err)
	assert.Nil(t, pr)
}

// Compile-time interface check.
func TestBackendImplementsBackend(t *testing.T) {
	var _ provider.Backend = (*Backend)(nil)
}
