package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alanmeadows/applybot/internal/pipeline"
	"github.com/alanmeadows/applybot/internal/store"
)

// stepOutputs renders the Actions step outputs for res, in a fixed order.
func stepOutputs(res *pipeline.Result) [][2]string {
	if res == nil {
		res = &pipeline.Result{}
	}
	outcome := string(res.Outcome)
	if outcome == "" {
		outcome = "ignored"
	}
	return [][2]string{
		{"should_apply", strconv.FormatBool(res.ShouldApply)},
		{"outcome", outcome},
		{"comment_id", res.CommentID},
		{"parent_comment_id", res.ParentID},
		{"commit", res.Commit},
		{"posted", strconv.Itoa(res.Posted)},
		{"refreshed", strconv.Itoa(res.Refresh.Updated)},
		{"refresh_skipped", strconv.Itoa(res.Refresh.Skipped)},
		{"refresh_failed", strconv.Itoa(res.Refresh.Failed)},
	}
}

// writeOutputs appends name=value lines to w. Newlines in values are
// flattened so every output stays on one line.
func writeOutputs(w io.Writer, outputs [][2]string) error {
	for _, kv := range outputs {
		v := strings.NewReplacer("\r", " ", "\n", " ").Replace(kv[1])
		if _, err := fmt.Fprintf(w, "%s=%s\n", kv[0], v); err != nil {
			return err
		}
	}
	return nil
}

// writeStepOutputs appends the outputs of res to the file named by
// GITHUB_OUTPUT. Outside Actions it does nothing.
func writeStepOutputs(res *pipeline.Result) error {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()
	if err := writeOutputs(f, stepOutputs(res)); err != nil {
		return fmt.Errorf("writing GITHUB_OUTPUT: %w", err)
	}
	return nil
}

// reportsDir resolves reports.dir against the repository root.
func reportsDir(root string) string {
	dir := appConfig.Reports.Dir
	if dir == "" {
		dir = filepath.Join(".applybot", "reports")
	}
	if filepath.IsAbs(dir) || root == "" {
		return dir
	}
	return filepath.Join(root, dir)
}

// newReport fills a run report from an event result.
func newReport(event, repo, pr string, res *pipeline.Result, runErr error) *store.Report {
	r := &store.Report{
		Time:  time.Now(),
		Event: event,
		Repo:  repo,
		PR:    pr,
	}
	if res != nil {
		r.Comment = res.CommentID
		r.Outcome = string(res.Outcome)
		r.Reason = res.Reason
		r.Commit = res.Commit
		r.Posted = res.Posted
		r.Refreshed = res.Refresh.Updated
		r.RefreshSkipped = res.Refresh.Skipped
		r.RefreshFailed = res.Refresh.Failed
		if res.Refresh.Err != nil {
			for _, line := range strings.Split(res.Refresh.Err.Error(), "\n") {
				r.Notes = append(r.Notes, "refresh: "+line)
			}
		}
		if res.RefreshErr != nil {
			r.Notes = append(r.Notes, "refresh: "+res.RefreshErr.Error())
		}
	}
	if r.Outcome == "" {
		r.Outcome = "ignored"
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// finish records the outcome of a run: step outputs, a run report and a
// one-line summary. The run error is returned unchanged.
func finish(ctx context.Context, w io.Writer, root, event, repo, pr string, res *pipeline.Result, runErr error) error {
	if err := writeStepOutputs(res); err != nil {
		slog.Warn("failed to write step outputs", "error", err)
	}

	if appConfig.Reports.IsEnabled() {
		path, err := store.WriteReport(ctx, reportsDir(root), newReport(event, repo, pr, res, runErr))
		if err != nil {
			slog.Warn("failed to write run report", "error", err)
		} else {
			slog.Debug("run report written", "path", path)
		}
	}

	if res != nil {
		fmt.Fprintf(w, "%s: %s", event, res.Outcome)
		if res.Reason != "" {
			fmt.Fprintf(w, " (%s)", res.Reason)
		}
		if res.Commit != "" {
			fmt.Fprintf(w, " commit=%s", res.Commit)
		}
		if res.Posted > 0 {
			fmt.Fprintf(w, " posted=%d", res.Posted)
		}
		if res.Refresh.Candidates > 0 {
			fmt.Fprintf(w, " refreshed=%d skipped=%d failed=%d", res.Refresh.Updated, res.Refresh.Skipped, res.Refresh.Failed)
		}
		fmt.Fprintln(w)
	}
	return runErr
}
