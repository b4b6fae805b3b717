package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions bounds every backend call.
type RetryOptions struct {
	// Attempts is the total number of tries for idempotent reads (minimum 1).
	Attempts int
	// Backoff is the initial wait between read attempts.
	Backoff time.Duration
	// Timeout caps each individual call, reads and writes alike.
	Timeout time.Duration
}

// DefaultRetryOptions returns the defaults used when config leaves them unset.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{Attempts: 3, Backoff: 500 * time.Millisecond, Timeout: 30 * time.Second}
}

// WithRetry wraps a backend so that reads are retried with exponential
// backoff and every call runs under a timeout. Mutating calls are attempted
// exactly once; their failure is returned to the caller unchanged.
func WithRetry(b PRBackend, opts RetryOptions) PRBackend {
	def := DefaultRetryOptions()
	if opts.Attempts < 1 {
		opts.Attempts = def.Attempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	return &retryBackend{next: b, opts: opts}
}

type retryBackend struct {
	next PRBackend
	opts RetryOptions
}

func (r *retryBackend) Name() string               { return r.next.Name() }
func (r *retryBackend) MatchesURL(url string) bool { return r.next.MatchesURL(url) }

func (r *retryBackend) GetPR(ctx context.Context, id string) (*PRInfo, error) {
	return retryRead(ctx, r.opts, "get_pr", func(ctx context.Context) (*PRInfo, error) {
		return r.next.GetPR(ctx, id)
	})
}

func (r *retryBackend) GetChangedFiles(ctx context.Context, pr *PRInfo) ([]ChangedFile, error) {
	return retryRead(ctx, r.opts, "get_changed_files", func(ctx context.Context) ([]ChangedFile, error) {
		return r.next.GetChangedFiles(ctx, pr)
	})
}

func (r *retryBackend) GetComments(ctx context.Context, pr *PRInfo) ([]Comment, error) {
	return retryRead(ctx, r.opts, "get_comments", func(ctx context.Context) ([]Comment, error) {
		return r.next.GetComments(ctx, pr)
	})
}

func (r *retryBackend) GetComment(ctx context.Context, pr *PRInfo, commentID string) (*Comment, error) {
	return retryRead(ctx, r.opts, "get_comment", func(ctx context.Context) (*Comment, error) {
		return r.next.GetComment(ctx, pr, commentID)
	})
}

func (r *retryBackend) PostInlineComment(ctx context.Context, pr *PRInfo, comment InlineComment) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.next.PostInlineComment(ctx, pr, comment)
}

func (r *retryBackend) ReplyToComment(ctx context.Context, pr *PRInfo, commentID string, body string) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.next.ReplyToComment(ctx, pr, commentID, body)
}

func (r *retryBackend) UpdateComment(ctx context.Context, pr *PRInfo, commentID string, body string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.next.UpdateComment(ctx, pr, commentID, body)
}

func (r *retryBackend) ResolveComment(ctx context.Context, pr *PRInfo, commentID string, resolution CommentResolution) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.next.ResolveComment(ctx, pr, commentID, resolution)
}

func retryRead[T any](ctx context.Context, opts RetryOptions, op string, fn func(context.Context) (T, error)) (T, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(backoff.WithInitialInterval(opts.Backoff)),
			uint64(opts.Attempts-1),
		),
		ctx,
	)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, wait time.Duration) {
		slog.Debug("retrying provider read", "op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

// retryable reports whether err is worth another attempt. Missing resources
// and client errors other than timeouts and rate limits are final.
func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupported) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return true
}

var _ PRBackend = (*retryBackend)(nil)
