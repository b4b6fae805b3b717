package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/lifecycle"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/provider"
	"github.com/alanmeadows/applybot/internal/thread"
)

// HandleReply processes a newly created review comment. Every comment is
// re-read from the backend first; a comment deleted in the meantime ends the
// run with OutcomeSuperseded. Ineligible replies return OutcomeIneligible
// and post nothing. A conflict posts a diagnostic reply and returns an error
// wrapping ErrConflict.
func (r *Runner) HandleReply(ctx context.Context, pr *provider.PRInfo, replyID string) (*Result, error) {
	res := &Result{CommentID: replyID}

	reply, err := r.backend.GetComment(ctx, pr, replyID)
	if errors.Is(err, provider.ErrNotFound) {
		slog.Info("reply no longer exists", "comment", replyID)
		return superseded(res, "reply deleted"), nil
	}
	if err != nil {
		return res, fmt.Errorf("fetching reply %s: %w", replyID, err)
	}

	if !r.classifier.IsBot(*reply) {
		res.Commands = r.opts.Commands.Match(reply.Body)
		if err := r.dispatch(ctx, pr, *reply, res.Commands); err != nil {
			return res, err
		}
	}

	root, err := r.rootOf(ctx, pr, *reply)
	if errors.Is(err, provider.ErrNotFound) {
		slog.Info("thread root no longer exists", "comment", replyID)
		return superseded(res, "root deleted"), nil
	}
	if err != nil {
		return res, err
	}
	res.ParentID = root.ID

	d := r.validator.Evaluate(*reply, root)
	if !d.Eligible {
		slog.Info("reply not eligible", "comment", reply.ID, "root", root.ID, "reason", string(d.Reason))
		res.Outcome = OutcomeIneligible
		res.Reason = string(d.Reason)
		return res, nil
	}
	res.ShouldApply = true
	rec := d.Record
	log := slog.With("comment", reply.ID, "root", root.ID, "file", rec.File, "line", rec.Line)
	log.Info("applying suggested change")

	if r.opts.Acknowledge {
		if _, err := r.backend.ReplyToComment(ctx, pr, root.ID, lifecycle.ProcessingReply()); err != nil {
			return res, fmt.Errorf("posting acknowledgement: %w", err)
		}
	}

	applied, err := r.ws.ApplyPatch(ctx, rec.File, rec.Patch, r.applier)
	if err != nil {
		log.Warn("patch could not be applied", "error", err)
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		if _, rerr := r.backend.ReplyToComment(ctx, pr, root.ID, lifecycle.FailureReply(rec.File, err)); rerr != nil {
			return res, errors.Join(err, fmt.Errorf("posting failure reply: %w", rerr))
		}
		return res, err
	}

	outcome := lifecycle.Outcome{Status: applied.Status, AlreadyApplied: applied.AlreadyApplied, File: rec.File, Conflict: applied.Conflict}
	switch {
	case applied.Status == patch.StatusConflict:
		log.Warn("patch conflict", "conflict", applied.Conflict)
		res.Outcome = OutcomeConflict
		if applied.Conflict != nil {
			res.Reason = applied.Conflict.Error()
		}
		if _, err := r.backend.ReplyToComment(ctx, pr, root.ID, lifecycle.BuildReply(outcome)); err != nil {
			return res, fmt.Errorf("posting conflict reply: %w", err)
		}
		return res, fmt.Errorf("%w: comment %s: %s", ErrConflict, root.ID, res.Reason)

	case applied.Status == patch.StatusNoop && !applied.AlreadyApplied:
		log.Info("patch changes nothing")
		res.Outcome = OutcomeNoop
		if _, err := r.backend.ReplyToComment(ctx, pr, root.ID, lifecycle.BuildReply(outcome)); err != nil {
			return res, fmt.Errorf("posting reply: %w", err)
		}
		return res, nil

	case applied.Status == patch.StatusApplied:
		msg, err := r.commitMessage(CommitInfo{
			File:      rec.File,
			Line:      rec.Line,
			Severity:  issue.NormalizeSeverity(rec.Severity),
			Category:  rec.Category,
			Command:   r.opts.Commands.Apply,
			CommentID: root.ID,
			ReplyID:   reply.ID,
			Author:    reply.Author,
		})
		if err != nil {
			return res, err
		}
		sha, err := r.ws.CommitAndPush(ctx, pr.SourceBranch, msg, rec.File)
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("committing %s: %w", rec.File, err)
		}
		res.Commit = sha
		outcome.Commit = sha
		res.Outcome = OutcomeApplied
		log.Info("change committed", "commit", sha)

	default:
		log.Info("change already present on branch")
		res.Outcome = OutcomeAlreadyApplied
	}

	if err := r.markApplied(ctx, pr, root.ID); err != nil {
		return res, err
	}

	// Pushes made with the workflow token do not trigger a synchronize
	// event, so the remaining suggestions on the file are refreshed here.
	res.Refresh, res.RefreshErr = r.refresher.Run(ctx, pr, []string{rec.File}, root.ID)
	if res.RefreshErr != nil {
		log.Warn("refresh after apply failed", "error", res.RefreshErr)
	}
	outcome.Refreshed = res.Refresh.Updated

	if _, err := r.backend.ReplyToComment(ctx, pr, root.ID, lifecycle.BuildReply(outcome)); err != nil {
		return res, fmt.Errorf("posting confirmation: %w", err)
	}

	if r.opts.ResolveThread {
		if err := r.backend.ResolveComment(ctx, pr, root.ID, provider.ResolutionFixed); err != nil {
			log.Warn("failed to resolve thread", "error", err)
		}
	}
	return res, nil
}

// markApplied re-reads the root and flips it to applied. A root that is
// already applied is left alone.
func (r *Runner) markApplied(ctx context.Context, pr *provider.PRInfo, rootID string) error {
	fresh, err := r.backend.GetComment(ctx, pr, rootID)
	if err != nil {
		return fmt.Errorf("re-reading root %s: %w", rootID, err)
	}
	if issue.StatusOf(fresh.Body) == issue.StatusApplied {
		slog.Info("root already marked applied", "root", rootID)
		return nil
	}
	body, err := lifecycle.MarkApplied(*fresh)
	if err != nil {
		return err
	}
	if err := r.backend.UpdateComment(ctx, pr, rootID, body); err != nil {
		return fmt.Errorf("updating status of %s: %w", rootID, err)
	}
	return nil
}

// rootOf finds the top of reply's thread, fetching parents that are not in
// the listed comments.
func (r *Runner) rootOf(ctx context.Context, pr *provider.PRInfo, reply provider.Comment) (provider.Comment, error) {
	if !reply.IsReply() {
		return reply, nil
	}
	comments, err := r.backend.GetComments(ctx, pr)
	if err != nil {
		return provider.Comment{}, fmt.Errorf("listing comments: %w", err)
	}
	root := thread.RootOf(reply, comments)
	for depth := 0; root.IsReply() && depth < 10; depth++ {
		parent, err := r.backend.GetComment(ctx, pr, root.InReplyTo)
		if err != nil {
			return provider.Comment{}, fmt.Errorf("fetching parent %s: %w", root.InReplyTo, err)
		}
		root = *parent
	}
	return root, nil
}

// dispatch runs the handlers of external commands. Commands with no
// registered handler are left to the tooling that owns them.
func (r *Runner) dispatch(ctx context.Context, pr *provider.PRInfo, reply provider.Comment, commands []string) error {
	for _, cmd := range commands {
		if cmd == r.opts.Commands.Apply {
			continue
		}
		h, ok := r.handlers[cmd]
		if !ok {
			slog.Info("command handled externally", "command", cmd, "comment", reply.ID)
			continue
		}
		if err := h(ctx, pr, reply); err != nil {
			return fmt.Errorf("handling %s: %w", cmd, err)
		}
	}
	return nil
}

func superseded(res *Result, reason string) *Result {
	res.Outcome = OutcomeSuperseded
	res.Reason = reason
	return res
}
