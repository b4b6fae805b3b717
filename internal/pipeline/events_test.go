package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/provider"
	"github.com/alanmeadows/applybot/internal/provider/fake"
)

// analyzerFunc adapts a function to analyzer.Analyzer.
type analyzerFunc func(ctx context.Context, file, diff string) ([]issue.Record, error)

func (f analyzerFunc) Analyze(ctx context.Context, file, diff string) ([]issue.Record, error) {
	return f(ctx, file, diff)
}

func findings(file string) []issue.Record {
	return []issue.Record{
		{File: file, Line: 10, Severity: "HIGH", Description: "log the error", Patch: singleLinePatch(10)},
		{File: file, Line: 20, Severity: "LOW", Description: "add request id", Patch: singleLinePatch(20)},
	}
}

func TestHandleOpenedPostsIssues(t *testing.T) {
	b := fake.New(*pr)
	b.SetFiles(
		provider.ChangedFile{Path: file, Status: "modified", Patch: "@@ -1 +1 @@"},
		provider.ChangedFile{Path: "old/gone.go", Status: "removed"},
	)
	var analyzed []string
	an := analyzerFunc(func(_ context.Context, f, diff string) ([]issue.Record, error) {
		analyzed = append(analyzed, f)
		assert.Equal(t, "@@ -1 +1 @@", diff)
		return findings(f), nil
	})

	r, err := New(b, newMemWorkspace(map[string]string{file: numbered(40)}), an, nil, Options{})
	require.NoError(t, err)

	res, err := r.HandleOpened(t.Context(), pr)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnalyzed, res.Outcome)
	assert.Equal(t, 2, res.Posted)
	assert.Equal(t, []string{file}, analyzed)

	roots := b.Roots()
	require.Len(t, roots, 2)
	for i, c := range roots {
		assert.Equal(t, issue.StatusAnalyzed, issue.StatusOf(c.Body))
		assert.Contains(t, c.Body, "Reply with `/apply-logs` to apply this change automatically.")
		rec, err := issue.Decode(c.Body)
		require.NoError(t, err)
		assert.Equal(t, findings(file)[i].Line, rec.Line)
		assert.Equal(t, rec.Line, c.Line)
	}

	// A reopened pull request does not get the same issues twice.
	res, err = r.HandleOpened(t.Context(), pr)
	require.NoError(t, err)
	assert.Zero(t, res.Posted)
	assert.Len(t, b.Roots(), 2)
}

func TestHandleOpenedIsolatesAnalyzerFailures(t *testing.T) {
	b := fake.New(*pr)
	b.SetFiles(
		provider.ChangedFile{Path: "a.go", Status: "added"},
		provider.ChangedFile{Path: file, Status: "modified"},
	)
	an := analyzerFunc(func(_ context.Context, f, _ string) ([]issue.Record, error) {
		if f == "a.go" {
			return nil, errors.New("model unavailable")
		}
		return findings(f)[:1], nil
	})

	r, err := New(b, newMemWorkspace(nil), an, nil, Options{})
	require.NoError(t, err)

	res, err := r.HandleOpened(t.Context(), pr)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posted)
}

func TestHandleOpenedIncludeAndCap(t *testing.T) {
	b := fake.New(*pr)
	b.SetFiles(
		provider.ChangedFile{Path: "svc/a.go", Status: "modified"},
		provider.ChangedFile{Path: "svc/b.go", Status: "modified"},
		provider.ChangedFile{Path: "docs/readme.md", Status: "modified"},
		provider.ChangedFile{Path: "svc/c.go", Status: "modified"},
	)
	var analyzed []string
	an := analyzerFunc(func(_ context.Context, f, _ string) ([]issue.Record, error) {
		analyzed = append(analyzed, f)
		return nil, nil
	})

	r, err := New(b, newMemWorkspace(nil), an, nil, Options{Include: []string{"*.go"}, MaxFiles: 2})
	require.NoError(t, err)

	_, err = r.HandleOpened(t.Context(), pr)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc/a.go", "svc/b.go"}, analyzed)
}

func TestHandleOpenedSelect(t *testing.T) {
	b := fake.New(*pr)
	b.SetFiles(provider.ChangedFile{Path: file, Status: "modified"})
	an := analyzerFunc(func(_ context.Context, f, _ string) ([]issue.Record, error) {
		return findings(f), nil
	})

	r, err := New(b, newMemWorkspace(nil), an, nil, Options{
		Select: func(_ string, recs []issue.Record) ([]issue.Record, error) {
			return recs[1:], nil
		},
	})
	require.NoError(t, err)

	res, err := r.HandleOpened(t.Context(), pr)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posted)
	rec, err := issue.Decode(b.Roots()[0].Body)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Line)
}

func TestHandleOpenedWithoutAnalyzer(t *testing.T) {
	r, err := New(fake.New(*pr), newMemWorkspace(nil), nil, nil, Options{})
	require.NoError(t, err)

	_, err = r.HandleOpened(t.Context(), pr)
	assert.ErrorIs(t, err, ErrNoAnalyzer)
}

func TestHandleSynchronize(t *testing.T) {
	s := newScenario(t)
	// A human push inserts two lines at the top of the file.
	s.ws.files[file] = "package main\n\n" + s.ws.files[file]
	s.ws.changed = []string{file, "unrelated.go"}
	r := newRunner(t, s.backend, s.ws, Options{})

	res, err := r.HandleSynchronize(t.Context(), pr, "before", "after")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRefreshed, res.Outcome)
	assert.Equal(t, 3, res.Refresh.Updated)
	assert.Equal(t, 12, record(t, s.backend, s.l10.ID).Line)
	assert.Equal(t, 22, record(t, s.backend, s.l20.ID).Line)
	assert.Equal(t, 32, record(t, s.backend, s.l30.ID).Line)

	// Refresh is idempotent.
	res, err = r.HandleSynchronize(t.Context(), pr, "before", "after")
	require.NoError(t, err)
	assert.Zero(t, res.Refresh.Updated)
	assert.Equal(t, 3, res.Refresh.Unchanged)
}

func TestHandleSynchronizeFallsBackToPRFiles(t *testing.T) {
	s := newScenario(t)
	s.ws.files[file] = "package main\n" + s.ws.files[file]
	s.ws.diffErr = errors.New("shallow clone")
	s.backend.SetFiles(provider.ChangedFile{Path: file, Status: "modified"})
	r := newRunner(t, s.backend, s.ws, Options{})

	res, err := r.HandleSynchronize(t.Context(), pr, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Refresh.Updated)
}

func TestRefreshListFailure(t *testing.T) {
	s := newScenario(t)
	s.backend.FailGetComments = errors.New("boom")
	r := newRunner(t, s.backend, s.ws, Options{})

	res, err := r.Refresh(t.Context(), pr, []string{file})
	require.Error(t, err)
	assert.Error(t, res.RefreshErr)
}

func TestStatus(t *testing.T) {
	s := newScenario(t)
	r := newRunner(t, s.backend, s.ws, Options{})

	c := reply(s.backend, s.l10, "dev", "/apply-logs")
	_, err := r.HandleReply(t.Context(), pr, c.ID)
	require.NoError(t, err)
	s.backend.Add(provider.Comment{Author: "reviewer", Body: "not an issue"})

	rows, err := r.Status(t.Context(), pr)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, s.l10.ID, rows[0].CommentID)
	assert.Equal(t, issue.StatusApplied, rows[0].Status)
	assert.Equal(t, 2, rows[0].Replies)
	assert.False(t, rows[0].Current, "applied root keeps the pre-apply hash")

	assert.Equal(t, issue.StatusAnalyzed, rows[1].Status)
	assert.Equal(t, 21, rows[1].Line)
	assert.True(t, rows[1].Current)
	assert.Equal(t, "HIGH", rows[1].Severity)
}
