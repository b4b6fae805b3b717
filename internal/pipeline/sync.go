package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanmeadows/applybot/internal/provider"
)

// HandleSynchronize refreshes the pending issue comments on the files a
// push changed. before is the previous head and may be empty, in which case
// only the head commit is diffed against its parent. When the working copy
// cannot answer, the pull request's changed files are used instead.
func (r *Runner) HandleSynchronize(ctx context.Context, pr *provider.PRInfo, before, head string) (*Result, error) {
	if head == "" {
		head = "HEAD"
	}

	var changed []string
	var err error
	if before != "" {
		changed, err = r.ws.DiffFiles(before, head)
	} else {
		changed, err = r.ws.ChangedFiles(head)
	}
	if err != nil {
		slog.Warn("could not diff working copy, using pull request files", "before", before, "head", head, "error", err)
		if changed, err = r.prFiles(ctx, pr); err != nil {
			return &Result{Outcome: OutcomeRefreshed}, err
		}
	}
	return r.Refresh(ctx, pr, changed)
}

// Refresh runs the patch refresher over files. An empty list means every
// file the pull request changes.
func (r *Runner) Refresh(ctx context.Context, pr *provider.PRInfo, files []string) (*Result, error) {
	res := &Result{Outcome: OutcomeRefreshed}
	if len(files) == 0 {
		var err error
		if files, err = r.prFiles(ctx, pr); err != nil {
			return res, err
		}
	}

	sum, err := r.refresher.Run(ctx, pr, files)
	res.Refresh = sum
	if err != nil {
		res.RefreshErr = err
		return res, fmt.Errorf("refreshing comments: %w", err)
	}
	if sum.Err != nil {
		slog.Warn("some comments could not be refreshed", "failed", sum.Failed, "error", sum.Err)
	}
	return res, nil
}

func (r *Runner) prFiles(ctx context.Context, pr *provider.PRInfo) ([]string, error) {
	files, err := r.backend.GetChangedFiles(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.Status != "removed" {
			paths = append(paths, f.Path)
		}
	}
	return paths, nil
}
