package backport

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/alanmeadows/backport/internal/provider"
)

// mockRepo is a test double for Repository. It records the order of calls
// and fails the step named in Errs.
type mockRepo struct {
	mu         sync.Mutex
	Calls      []string
	Errs       map[string]error
	Exists     bool
	Debris     bool
	Transcript string
	AppliedRaw []byte
	Pushed     []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{Errs: make(map[string]error)}
}

func (m *mockRepo) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
	return m.Errs[name]
}

func (m *mockRepo) Clean(context.Context) error { return m.record("clean") }

func (m *mockRepo) Dirty(context.Context) (bool, error) {
	if err := m.record("status"); err != nil {
		return false, err
	}
	return m.Debris, nil
}

func (m *mockRepo) CheckoutUpstream(_ context.Context, branch string) error {
	return m.record("checkout " + branch)
}

func (m *mockRepo) ConfigureIdentity(_ context.Context, name, email string) error {
	return m.record("identity " + name + " <" + email + ">")
}

func (m *mockRepo) CreateBranch(_ context.Context, name string) error {
	return m.record("branch " + name)
}

func (m *mockRepo) RemoteBranchExists(_ context.Context, branch string) (bool, error) {
	if err := m.record("probe " + branch); err != nil {
		return false, err
	}
	return m.Exists, nil
}

func (m *mockRepo) ApplyPatch(_ context.Context, patchPath string, transcript io.Writer) (string, error) {
	raw, readErr := os.ReadFile(patchPath)
	m.mu.Lock()
	m.AppliedRaw = raw
	m.mu.Unlock()
	if readErr != nil {
		return "", readErr
	}
	if transcript != nil {
		io.WriteString(transcript, m.Transcript)
	}
	return m.Transcript, m.record("apply")
}

func (m *mockRepo) AbortApply(context.Context) error { return m.record("abort") }

func (m *mockRepo) ForcePush(_ context.Context, branch string) error {
	if err := m.record("push " + branch); err != nil {
		return err
	}
	m.mu.Lock()
	m.Pushed = append(m.Pushed, branch)
	m.mu.Unlock()
	return nil
}

// mockHost is a test double for Host.
type mockHost struct {
	mu          sync.Mutex
	Comments    []postedComment
	Patch       []byte
	PatchErr    error
	CommentErrs []error // consumed in order, one per PostComment call
	OpenPR      *provider.PRInfo
	FindErr     error
	FindCalls   []string
}

type postedComment struct {
	Owner  string
	Repo   string
	Number int
	Body   string
}

func (m *mockHost) PostComment(_ context.Context, owner, repo string, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CommentErrs) > 0 {
		err := m.CommentErrs[0]
		m.CommentErrs = m.CommentErrs[1:]
		if err != nil {
			return err
		}
	}
	m.Comments = append(m.Comments, postedComment{Owner: owner, Repo: repo, Number: number, Body: body})
	return nil
}

func (m *mockHost) FetchPatch(context.Context, string) ([]byte, error) {
	if m.PatchErr != nil {
		return nil, m.PatchErr
	}
	return m.Patch, nil
}

func (m *mockHost) FindOpenPR(_ context.Context, _, _, branch string) (*provider.PRInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls = append(m.FindCalls, branch)
	return m.OpenPR, m.FindErr
}

// mockRecorder captures recorded results.
type mockRecorder struct {
	Results []*Result
	Err     error
}

func (m *mockRecorder) Record(_ context.Context, _ Request, res *Result) error {
	m.Results = append(m.Results, res)
	return m.Err
}

var errBoom = errors.New("boom")
