package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/provider"
)

// ErrNoAnalyzer is returned by HandleOpened when the Runner has no analyzer.
var ErrNoAnalyzer = errors.New("no analyzer configured")

// HandleOpened analyzes the files changed by pr and posts one issue comment
// per finding. Issues that already have a root comment on the same file
// with the same description are not posted again, so a reopened pull
// request does not collect duplicates. A failure to analyze one file is
// logged and the remaining files are still processed.
func (r *Runner) HandleOpened(ctx context.Context, pr *provider.PRInfo) (*Result, error) {
	if r.analyzer == nil {
		return nil, ErrNoAnalyzer
	}
	res := &Result{Outcome: OutcomeAnalyzed}

	files, err := r.backend.GetChangedFiles(ctx, pr)
	if err != nil {
		return res, fmt.Errorf("listing changed files: %w", err)
	}
	files = r.analyzable(files)
	if len(files) == 0 {
		slog.Info("no files to analyze", "pr", pr.ID)
		return res, nil
	}

	comments, err := r.backend.GetComments(ctx, pr)
	if err != nil {
		return res, fmt.Errorf("listing comments: %w", err)
	}
	seen := make(map[string]bool)
	for _, root := range r.classifier.IssueRoots(comments) {
		seen[issueKey(root.Record)] = true
	}

	for _, f := range files {
		records, err := r.analyzer.Analyze(ctx, f.Path, f.Patch)
		if err != nil {
			slog.Warn("analysis failed", "file", f.Path, "error", err)
			continue
		}

		var fresh []issue.Record
		for _, rec := range records {
			if seen[issueKey(&rec)] {
				slog.Debug("issue already posted", "file", rec.File, "line", rec.Line)
				continue
			}
			fresh = append(fresh, rec)
		}
		if r.opts.Select != nil && len(fresh) > 0 {
			if fresh, err = r.opts.Select(f.Path, fresh); err != nil {
				return res, fmt.Errorf("selecting issues for %s: %w", f.Path, err)
			}
		}

		for _, rec := range fresh {
			body, err := r.codec.Encode(rec)
			if err != nil {
				slog.Warn("skipping issue that cannot be encoded", "file", rec.File, "line", rec.Line, "error", err)
				continue
			}
			c, err := r.backend.PostInlineComment(ctx, pr, provider.InlineComment{
				FilePath: rec.File,
				Line:     rec.Line,
				Body:     body,
				Side:     "right",
				CommitID: pr.HeadSHA,
			})
			if err != nil {
				return res, fmt.Errorf("posting issue on %s:%d: %w", rec.File, rec.Line, err)
			}
			seen[issueKey(&rec)] = true
			res.Posted++
			slog.Info("issue posted", "comment", c.ID, "file", rec.File, "line", rec.Line, "severity", issue.NormalizeSeverity(rec.Severity))
		}
	}
	return res, nil
}

// analyzable drops removed files and files outside the include globs, then
// applies the file cap.
func (r *Runner) analyzable(files []provider.ChangedFile) []provider.ChangedFile {
	var out []provider.ChangedFile
	for _, f := range files {
		if f.Status == "removed" || !r.included(f.Path) {
			continue
		}
		out = append(out, f)
	}
	if r.opts.MaxFiles > 0 && len(out) > r.opts.MaxFiles {
		slog.Warn("too many changed files, analyzing the first ones", "files", len(out), "max", r.opts.MaxFiles)
		out = out[:r.opts.MaxFiles]
	}
	return out
}

// included matches p against the include globs by full path or base name.
// No globs means every file.
func (r *Runner) included(p string) bool {
	if len(r.opts.Include) == 0 {
		return true
	}
	for _, g := range r.opts.Include {
		if ok, _ := path.Match(g, p); ok {
			return true
		}
		if ok, _ := path.Match(g, path.Base(p)); ok {
			return true
		}
	}
	return false
}

func issueKey(rec *issue.Record) string {
	return rec.File + "\x00" + rec.Description
}
