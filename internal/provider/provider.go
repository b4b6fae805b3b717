package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnsupported is returned when a backend doesn't support a given operation.
var ErrUnsupported = errors.New("operation not supported by this backend")

// ErrNotFound is returned when a pull request or comment no longer exists.
// Callers treat it as a superseded event rather than a failure.
var ErrNotFound = errors.New("resource not found")

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks . PRBackend

// PRBackend is the interface for code review hosting backends.
// Implementations handle provider-specific API calls for reading pull requests,
// their changed files and review comments, and for writing comments back.
type PRBackend interface {
	// Name returns the short identifier for this backend (e.g., "github").
	Name() string

	// MatchesURL returns true if the given URL belongs to this backend's hosting service.
	MatchesURL(url string) bool

	// GetPR retrieves pull request information by ID or URL.
	GetPR(ctx context.Context, id string) (*PRInfo, error)

	// GetChangedFiles lists the files changed by a pull request, with their diffs.
	GetChangedFiles(ctx context.Context, pr *PRInfo) ([]ChangedFile, error)

	// GetComments retrieves all review comments on a pull request.
	GetComments(ctx context.Context, pr *PRInfo) ([]Comment, error)

	// GetComment retrieves a single review comment. Returns ErrNotFound if it was deleted.
	GetComment(ctx context.Context, pr *PRInfo, commentID string) (*Comment, error)

	// PostInlineComment posts a comment on a specific file and line in the PR diff.
	PostInlineComment(ctx context.Context, pr *PRInfo, comment InlineComment) (*Comment, error)

	// ReplyToComment adds a reply under an existing review comment.
	// commentID must be the root comment of the thread.
	ReplyToComment(ctx context.Context, pr *PRInfo, commentID string, body string) (*Comment, error)

	// UpdateComment replaces the body of an existing review comment.
	UpdateComment(ctx context.Context, pr *PRInfo, commentID string, body string) error

	// ResolveComment resolves the review thread rooted at the given comment.
	ResolveComment(ctx context.Context, pr *PRInfo, commentID string, resolution CommentResolution) error
}

// PRInfo contains metadata about a pull request.
type PRInfo struct {
	// ID is the provider-specific pull request identifier (the PR number on GitHub).
	ID string
	// Title is the pull request title.
	Title string
	// Description is the pull request description/body text.
	Description string
	// Status is the current PR status (e.g., "active", "completed", "abandoned").
	Status string
	// SourceBranch is the branch being merged from.
	SourceBranch string
	// TargetBranch is the branch being merged into.
	TargetBranch string
	// HeadSHA is the commit at the tip of the source branch.
	HeadSHA string
	// Author is the login of the PR author.
	Author string
	// URL is the web URL to view the pull request.
	URL string
	// Owner is the account or organization owning the repository.
	Owner string
	// Repo is the repository name.
	Repo string
}

// Comment represents a review comment on a pull request.
type Comment struct {
	// ID is the comment identifier.
	ID string
	// InReplyTo is the ID of the comment this one replies to, empty for a root.
	InReplyTo string
	// NodeID is the provider's global identifier, when it has one.
	NodeID string
	// Author is the login of the comment author.
	Author string
	// Body is the comment text content.
	Body string
	// FilePath is the file path for inline comments (empty for general comments).
	FilePath string
	// Line is the line number for inline comments (0 for general comments).
	Line int
	// CreatedAt is the timestamp when the comment was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp of the last edit.
	UpdatedAt time.Time
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.InReplyTo != "" && c.InReplyTo != c.ID
}

// ChangedFile is a file touched by a pull request.
type ChangedFile struct {
	// Path is the file path relative to the repository root.
	Path string
	// Status is the provider's change kind ("added", "modified", "removed", "renamed").
	Status string
	// Patch is the unified diff of the change, when the provider returns one.
	Patch string
}

// InlineComment contains the data needed to post a comment on a specific line in a PR diff.
type InlineComment struct {
	// FilePath is the path of the file to comment on.
	FilePath string
	// Line is the line number to comment on.
	Line int
	// Body is the comment text.
	Body string
	// Side indicates which side of the diff to comment on ("left" or "right").
	Side string
	// CommitID pins the comment to a commit; the PR head is used when empty.
	CommitID string
}

// CommentResolution represents how a comment thread was resolved.
type CommentResolution int

const (
	// ResolutionUnknown is the zero value and must not be used.
	ResolutionUnknown CommentResolution = iota
	// ResolutionFixed indicates the issue was fixed.
	ResolutionFixed
	// ResolutionWontFix indicates the issue will not be fixed.
	ResolutionWontFix
)

// APIError carries the HTTP status of a failed backend call.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the call could succeed.
func (e *APIError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	}
	return true
}
