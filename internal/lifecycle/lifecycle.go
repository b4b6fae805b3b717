// Package lifecycle moves issue comments from analyzed to applied and
// writes the replies that accompany each outcome. It never talks to the
// hosting platform; callers persist what it returns.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/provider"
)

// MarkApplied returns root's body with its status set to applied.
func MarkApplied(root provider.Comment) (string, error) {
	body, err := issue.SetStatus(root.Body, issue.StatusApplied)
	if err != nil {
		return "", fmt.Errorf("marking comment %s applied: %w", root.ID, err)
	}
	return body, nil
}

// Outcome summarises an apply attempt for the reply text.
type Outcome struct {
	Status         patch.Status
	AlreadyApplied bool
	File           string
	// Commit is the SHA of the commit that carried the change, if any.
	Commit   string
	Conflict *patch.ConflictError
	// Refreshed is the number of sibling comments whose patches were updated.
	Refreshed int
}

// BuildReply returns the comment to post under the root for o. Successful
// applies get a confirmation; conflicts and no-ops get a short diagnostic.
func BuildReply(o Outcome) string {
	file := "the file"
	if o.File != "" {
		file = "`" + o.File + "`"
	}

	var sb strings.Builder
	switch {
	case o.Status == patch.StatusApplied:
		fmt.Fprintf(&sb, "✅ Done! The suggested change to %s was applied successfully", file)
		if o.Commit != "" {
			fmt.Fprintf(&sb, " in %s", shortSHA(o.Commit))
		}
		sb.WriteString(".")
	case o.AlreadyApplied:
		fmt.Fprintf(&sb, "✅ Done! The suggested change to %s is already on the branch, so it is now marked as applied.", file)
	case o.Status == patch.StatusConflict:
		fmt.Fprintf(&sb, "⚠️ **Could not apply this change automatically.** The patch no longer matches %s", file)
		if o.Conflict != nil {
			fmt.Fprintf(&sb, " (%s)", o.Conflict.Error())
		}
		sb.WriteString(".\n\nThe suggestion stays open and will be refreshed on the next push. You can also apply it by hand.")
		return tagged(sb.String())
	default:
		fmt.Fprintf(&sb, "ℹ️ Nothing to apply: the patch leaves %s unchanged.", file)
		return tagged(sb.String())
	}

	if o.Refreshed > 0 {
		fmt.Fprintf(&sb, "\n\nUpdated %d other %s on the changed files.", o.Refreshed, plural(o.Refreshed, "suggestion", "suggestions"))
	}
	return tagged(sb.String())
}

// FailureReply explains why a patch could not be attempted at all, for
// example because it no longer parses or its file is gone.
func FailureReply(file string, err error) string {
	if file == "" {
		file = "the file"
	} else {
		file = "`" + file + "`"
	}
	return tagged(fmt.Sprintf("⚠️ **Could not apply this change automatically.** The patch for %s could not be used: %v.\n\nYou can still apply it by hand.", file, err))
}

// ProcessingReply is posted before the apply starts. It never repeats the
// apply command, so the reply cannot trigger another apply.
func ProcessingReply() string {
	return tagged("✅ **applybot is processing your request.** The change will be committed to this branch shortly.")
}

// tagged appends the hidden reply marker to a reply body.
func tagged(body string) string {
	return body + "\n\n" + issue.ReplyMarker
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
