package pipeline

import (
	"context"
	"fmt"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/provider"
	"github.com/alanmeadows/applybot/internal/thread"
)

// StatusRow describes one issue comment on a pull request.
type StatusRow struct {
	CommentID string
	File      string
	Line      int
	Severity  string
	Status    issue.Status
	Replies   int
	// Current is true when file_hash matches the working copy.
	Current bool
}

// Status lists every issue comment on pr, ordered by file and line.
func (r *Runner) Status(ctx context.Context, pr *provider.PRInfo) ([]StatusRow, error) {
	comments, err := r.backend.GetComments(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}

	hashes := make(map[string]string)
	var rows []StatusRow
	for _, root := range r.classifier.IssueRoots(comments) {
		rec := root.Record
		h, ok := hashes[rec.File]
		if !ok {
			if data, err := r.ws.ReadFile(rec.File); err == nil {
				h = patch.HashContent(data)
			}
			hashes[rec.File] = h
		}
		rows = append(rows, StatusRow{
			CommentID: root.Comment.ID,
			File:      rec.File,
			Line:      rec.Line,
			Severity:  issue.NormalizeSeverity(rec.Severity),
			Status:    root.Status,
			Replies:   len(thread.Replies(root.Comment.ID, comments)),
			Current:   h != "" && h == rec.FileHash,
		})
	}
	return rows, nil
}
