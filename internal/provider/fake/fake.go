// Package fake provides an in-memory provider.PRBackend for tests.
package fake

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alanmeadows/applybot/internal/provider"
)

// Backend keeps one pull request and its review comments in memory.
// Errors set on the Fail* fields are returned by the matching call.
type Backend struct {
	mu       sync.Mutex
	pr       provider.PRInfo
	files    []provider.ChangedFile
	comments []provider.Comment
	nextID   int

	updates  map[string]int
	resolved []string

	FailGetComments error
	FailUpdate      error
	FailReply       error
	FailResolve     error
}

// New creates a backend serving pr.
func New(pr provider.PRInfo) *Backend {
	return &Backend{pr: pr, nextID: 1000, updates: make(map[string]int)}
}

// SetFiles replaces the pull request's changed files.
func (b *Backend) SetFiles(files ...provider.ChangedFile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files = files
}

// Add stores c, assigning an ID when it has none, and returns the stored copy.
func (b *Backend) Add(c provider.Comment) provider.Comment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(c)
}

func (b *Backend) add(c provider.Comment) provider.Comment {
	if c.ID == "" {
		b.nextID++
		c.ID = strconv.Itoa(b.nextID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Unix(int64(len(b.comments)), 0)
	}
	c.UpdatedAt = c.CreatedAt
	b.comments = append(b.comments, c)
	return c
}

// Comment returns the stored comment with id.
func (b *Backend) Comment(id string) (provider.Comment, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.comments {
		if c.ID == id {
			return c, true
		}
	}
	return provider.Comment{}, false
}

// Delete removes a comment.
func (b *Backend) Delete(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.comments {
		if c.ID == id {
			b.comments = append(b.comments[:i], b.comments[i+1:]...)
			return
		}
	}
}

// RepliesTo returns the replies whose parent is id, oldest first.
func (b *Backend) RepliesTo(id string) []provider.Comment {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []provider.Comment
	for _, c := range b.comments {
		if c.InReplyTo == id && c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// Roots returns the top-level comments, oldest first.
func (b *Backend) Roots() []provider.Comment {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []provider.Comment
	for _, c := range b.comments {
		if !c.IsReply() {
			out = append(out, c)
		}
	}
	return out
}

// Updates returns how many times UpdateComment rewrote id.
func (b *Backend) Updates(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updates[id]
}

// TotalUpdates returns the number of successful UpdateComment calls.
func (b *Backend) TotalUpdates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.updates {
		n += v
	}
	return n
}

// Resolved returns the comment IDs passed to ResolveComment.
func (b *Backend) Resolved() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resolved...)
}

func (b *Backend) Name() string               { return "fake" }
func (b *Backend) MatchesURL(url string) bool { return false }

func (b *Backend) GetPR(_ context.Context, id string) (*provider.PRInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id != b.pr.ID && id != b.pr.URL {
		return nil, fmt.Errorf("pr %s: %w", id, provider.ErrNotFound)
	}
	pr := b.pr
	return &pr, nil
}

func (b *Backend) GetChangedFiles(_ context.Context, _ *provider.PRInfo) ([]provider.ChangedFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]provider.ChangedFile(nil), b.files...), nil
}

func (b *Backend) GetComments(_ context.Context, _ *provider.PRInfo) ([]provider.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailGetComments != nil {
		return nil, b.FailGetComments
	}
	return append([]provider.Comment(nil), b.comments...), nil
}

func (b *Backend) GetComment(_ context.Context, _ *provider.PRInfo, commentID string) (*provider.Comment, error) {
	c, ok := b.Comment(commentID)
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", commentID, provider.ErrNotFound)
	}
	return &c, nil
}

func (b *Backend) PostInlineComment(_ context.Context, _ *provider.PRInfo, comment provider.InlineComment) (*provider.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.add(provider.Comment{
		Author:   "applybot[bot]",
		Body:     comment.Body,
		FilePath: comment.FilePath,
		Line:     comment.Line,
	})
	return &c, nil
}

func (b *Backend) ReplyToComment(_ context.Context, _ *provider.PRInfo, commentID string, body string) (*provider.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailReply != nil {
		return nil, b.FailReply
	}
	c := b.add(provider.Comment{Author: "applybot[bot]", Body: body, InReplyTo: commentID})
	return &c, nil
}

func (b *Backend) UpdateComment(_ context.Context, _ *provider.PRInfo, commentID string, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailUpdate != nil {
		return b.FailUpdate
	}
	for i := range b.comments {
		if b.comments[i].ID == commentID {
			b.comments[i].Body = body
			b.comments[i].UpdatedAt = b.comments[i].UpdatedAt.Add(time.Second)
			b.updates[commentID]++
			return nil
		}
	}
	return fmt.Errorf("comment %s: %w", commentID, provider.ErrNotFound)
}

func (b *Backend) ResolveComment(_ context.Context, _ *provider.PRInfo, commentID string, _ provider.CommentResolution) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailResolve != nil {
		return b.FailResolve
	}
	b.resolved = append(b.resolved, commentID)
	return nil
}

var _ provider.PRBackend = (*Backend)(nil)
