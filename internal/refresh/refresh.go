// Package refresh keeps the patches of still-open issue comments valid after
// the files they target change.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/provider"
	"github.com/alanmeadows/applybot/internal/thread"
)

const (
	// DefaultMaxComments caps the candidates handled in one pass.
	DefaultMaxComments = 50
	// DefaultParallelism is how many candidates are refreshed at once.
	DefaultParallelism = 4
)

// FileReader reads current file content by repository-relative path.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Options tunes a refresh pass.
type Options struct {
	MaxComments int
	Parallelism int
	// Window is the search window used to dry-run regenerated patches.
	Window int
}

// Refresher recomputes patch, line and file_hash of pending issue roots.
type Refresher struct {
	backend    provider.PRBackend
	classifier *thread.Classifier
	files      FileReader
	generator  Generator
	opts       Options
}

// New creates a Refresher. generator may be nil, in which case candidates
// whose context cannot be relocated fail.
func New(backend provider.PRBackend, classifier *thread.Classifier, files FileReader, generator Generator, opts Options) *Refresher {
	if opts.MaxComments <= 0 {
		opts.MaxComments = DefaultMaxComments
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	return &Refresher{
		backend:    backend,
		classifier: classifier,
		files:      files,
		generator:  generator,
		opts:       opts,
	}
}

// Result is what happened to one candidate.
type Result int

const (
	ResultUpdated Result = iota
	ResultUnchanged
	ResultSkipped
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultUpdated:
		return "updated"
	case ResultUnchanged:
		return "unchanged"
	case ResultSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// CandidateError is a failure isolated to one issue comment.
type CandidateError struct {
	CommentID string
	File      string
	Err       error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("comment %s (%s): %v", e.CommentID, e.File, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }

// Summary aggregates a refresh pass.
type Summary struct {
	Candidates int
	Updated    int
	Unchanged  int
	// Skipped counts candidates over the cap, already present changes and
	// comments that vanished or were applied while the pass ran.
	Skipped int
	Failed  int
	// UpdatedIDs lists the rewritten comments in candidate order.
	UpdatedIDs []string
	// Err joins every CandidateError; nil when nothing failed.
	Err error
}

// Run refreshes every pending issue root whose file is in changed, except
// the comments in exclude. Per-candidate failures are collected in the
// Summary; only failing to list comments is returned as an error.
func (r *Refresher) Run(ctx context.Context, pr *provider.PRInfo, changed []string, exclude ...string) (Summary, error) {
	var sum Summary
	if len(changed) == 0 {
		return sum, nil
	}

	comments, err := r.backend.GetComments(ctx, pr)
	if err != nil {
		return sum, fmt.Errorf("listing comments: %w", err)
	}

	candidates := r.candidates(comments, changed, exclude)
	sum.Candidates = len(candidates)
	if len(candidates) > r.opts.MaxComments {
		slog.Warn("refresh candidates over cap", "candidates", len(candidates), "max", r.opts.MaxComments)
		sum.Skipped = len(candidates) - r.opts.MaxComments
		candidates = candidates[:r.opts.MaxComments]
	}
	if len(candidates) == 0 {
		slog.Debug("no refresh candidates", "files", len(changed))
		return sum, nil
	}

	contents := r.readFiles(candidates)

	results := make([]Result, len(candidates))
	errs := make([]error, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for i, c := range candidates {
		g.Go(func() error {
			res, err := r.refreshOne(gctx, pr, c, contents[c.Record.File])
			results[i] = res
			if err != nil {
				errs[i] = &CandidateError{CommentID: c.Comment.ID, File: c.Record.File, Err: err}
				slog.Warn("refresh failed", "comment", c.Comment.ID, "file", c.Record.File, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		switch res {
		case ResultUpdated:
			sum.Updated++
			sum.UpdatedIDs = append(sum.UpdatedIDs, candidates[i].Comment.ID)
		case ResultUnchanged:
			sum.Unchanged++
		case ResultSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}
	sum.Err = errors.Join(errs...)

	slog.Info("refresh complete",
		"candidates", sum.Candidates,
		"updated", sum.Updated,
		"unchanged", sum.Unchanged,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)
	return sum, nil
}

// candidates returns the pending issue roots on changed files, ordered by
// file then line. Applied roots are never candidates.
func (r *Refresher) candidates(comments []provider.Comment, changed, exclude []string) []thread.Root {
	var out []thread.Root
	for _, root := range r.classifier.IssueRoots(comments) {
		if !root.Status.Pending() {
			continue
		}
		if !slices.Contains(changed, root.Record.File) || slices.Contains(exclude, root.Comment.ID) {
			continue
		}
		out = append(out, root)
	}
	return out
}

type fileContent struct {
	data []byte
	err  error
}

func (r *Refresher) readFiles(candidates []thread.Root) map[string]fileContent {
	out := make(map[string]fileContent)
	for _, c := range candidates {
		f := c.Record.File
		if _, ok := out[f]; ok {
			continue
		}
		data, err := r.files.ReadFile(f)
		out[f] = fileContent{data: data, err: err}
	}
	return out
}

// refreshOne recomputes one candidate against content and writes it back
// if anything changed.
func (r *Refresher) refreshOne(ctx context.Context, pr *provider.PRInfo, c thread.Root, fc fileContent) (Result, error) {
	if fc.err != nil {
		return ResultFailed, fmt.Errorf("reading file: %w", fc.err)
	}
	content := string(fc.data)
	rec := c.Record

	newPatch, newLine, err := r.recompute(ctx, rec, content)
	if errors.Is(err, patch.ErrAlreadyPresent) {
		slog.Info("suggested change already present, leaving comment as is", "comment", c.Comment.ID, "file", rec.File)
		return ResultSkipped, nil
	}
	if err != nil {
		return ResultFailed, err
	}

	hash := patch.HashContent(fc.data)
	if newPatch == rec.Patch && newLine == rec.Line && hash == rec.FileHash {
		return ResultUnchanged, nil
	}

	// Re-read right before writing so an apply that landed meanwhile wins.
	fresh, err := r.backend.GetComment(ctx, pr, c.Comment.ID)
	if errors.Is(err, provider.ErrNotFound) {
		return ResultSkipped, nil
	}
	if err != nil {
		return ResultFailed, fmt.Errorf("re-reading comment: %w", err)
	}
	if !issue.StatusOf(fresh.Body).Pending() {
		slog.Info("comment was applied during refresh", "comment", c.Comment.ID)
		return ResultSkipped, nil
	}

	body, err := issue.UpdateRecord(fresh.Body, newPatch, newLine, hash)
	if err != nil {
		return ResultFailed, fmt.Errorf("rewriting issue data: %w", err)
	}
	if body == fresh.Body {
		return ResultUnchanged, nil
	}
	if err := r.backend.UpdateComment(ctx, pr, c.Comment.ID, body); err != nil {
		return ResultFailed, fmt.Errorf("updating comment: %w", err)
	}
	slog.Debug("refreshed comment", "comment", c.Comment.ID, "file", rec.File, "line", newLine)
	return ResultUpdated, nil
}

// recompute relocates the stored patch onto content, asking the generator
// when its context is gone.
func (r *Refresher) recompute(ctx context.Context, rec *issue.Record, content string) (string, int, error) {
	p, err := patch.Parse(rec.Patch)
	if err != nil {
		return "", 0, fmt.Errorf("stored patch: %w", err)
	}

	rebased, err := patch.Rebase(content, p)
	if err == nil {
		return rebased.Patch.String(), rebased.Line(rec.Line), nil
	}
	if !errors.Is(err, patch.ErrContextLost) || r.generator == nil {
		return "", 0, err
	}

	slog.Info("context lost, regenerating patch", "file", rec.File, "line", rec.Line)
	text, genErr := r.generator.Regenerate(ctx, *rec, content)
	if genErr != nil {
		return "", 0, fmt.Errorf("%w; regenerating: %v", err, genErr)
	}
	gp, perr := patch.Parse(text)
	if perr != nil {
		return "", 0, fmt.Errorf("%w; regenerated patch: %v", err, perr)
	}
	res := patch.NewApplier(r.opts.Window).Apply(content, gp)
	if res.Status != patch.StatusApplied {
		return "", 0, fmt.Errorf("%w; regenerated patch does not apply (%s)", err, res.Status)
	}

	line := rec.Line
	if len(p.Hunks) > 0 {
		line = max(gp.Hunks[0].OldStart+(rec.Line-p.Hunks[0].OldStart), 1)
	}
	return gp.String(), line, nil
}
