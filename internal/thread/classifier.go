// Package thread classifies review comments and decides whether a reply may
// act on the issue comment it belongs to.
package thread

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/provider"
)

// DefaultBotSuffix is the login suffix GitHub gives app accounts.
const DefaultBotSuffix = "[bot]"

// Classifier recognises bot comments from two independent signals: the
// author identity and marker text in the body.
type Classifier struct {
	suffixes []string
	logins   []string
}

// NewClassifier builds a classifier. Empty suffixes fall back to "[bot]";
// logins are extra accounts that post on the bot's behalf.
func NewClassifier(suffixes []string, logins ...string) *Classifier {
	c := &Classifier{}
	for _, s := range suffixes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			c.suffixes = append(c.suffixes, s)
		}
	}
	if len(c.suffixes) == 0 {
		c.suffixes = []string{DefaultBotSuffix}
	}
	for _, l := range logins {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			c.logins = append(c.logins, l)
		}
	}
	return c
}

// IsBotAuthor reports whether author is a bot identity.
func (c *Classifier) IsBotAuthor(author string) bool {
	a := strings.ToLower(strings.TrimSpace(author))
	if a == "" {
		return false
	}
	if slices.Contains(c.logins, a) {
		return true
	}
	for _, s := range c.suffixes {
		if strings.HasSuffix(a, s) {
			return true
		}
	}
	return false
}

// IsBot reports whether the comment was written by the bot. Marker text is
// authoritative even when the author looks human, which covers a bot
// posting through a user token.
func (c *Classifier) IsBot(cm provider.Comment) bool {
	return c.IsBotAuthor(cm.Author) || issue.HasMarker(cm.Body)
}

// Root is a bot issue comment with its decoded record.
type Root struct {
	Comment provider.Comment
	Record  *issue.Record
	Status  issue.Status
}

// IssueRoot classifies cm as an issue root. It returns false for replies,
// human comments and bodies without a decodable record. Decode failures are
// logged and otherwise treated as "not an issue comment".
func (c *Classifier) IssueRoot(cm provider.Comment) (Root, bool) {
	if cm.IsReply() || !c.IsBot(cm) {
		return Root{}, false
	}
	rec, err := issue.Decode(cm.Body)
	if err != nil {
		slog.Warn("ignoring comment with unreadable issue data", "comment", cm.ID, "error", err)
		return Root{}, false
	}
	if rec == nil {
		return Root{}, false
	}
	return Root{Comment: cm, Record: rec, Status: issue.StatusOf(cm.Body)}, true
}

// IssueRoots returns every issue root among comments, ordered by file then line.
func (c *Classifier) IssueRoots(comments []provider.Comment) []Root {
	var roots []Root
	for _, cm := range comments {
		if r, ok := c.IssueRoot(cm); ok {
			roots = append(roots, r)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].Record.File != roots[j].Record.File {
			return roots[i].Record.File < roots[j].Record.File
		}
		return roots[i].Record.Line < roots[j].Record.Line
	})
	return roots
}

// RootOf follows the in-reply-to chain from cm to the top of its thread.
// A comment with no parent is its own root. If a parent is missing from
// all, the topmost comment found is returned and its InReplyTo still names
// the missing parent.
func RootOf(cm provider.Comment, all []provider.Comment) provider.Comment {
	byID := make(map[string]provider.Comment, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}

	current := cm
	seen := map[string]bool{current.ID: true}
	for current.IsReply() {
		parent, ok := byID[current.InReplyTo]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		current = parent
	}
	return current
}

// Replies returns the comments that belong to the thread rooted at rootID,
// in their original order.
func Replies(rootID string, all []provider.Comment) []provider.Comment {
	var out []provider.Comment
	for _, c := range all {
		if c.IsReply() && RootOf(c, all).ID == rootID {
			out = append(out, c)
		}
	}
	return out
}
