package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/alanmeadows/applybot/internal/provider"
)

// Backend implements provider.PRBackend for GitHub and GitHub Enterprise.
type Backend struct {
	client     *gh.Client
	gqlOnce    sync.Once
	gqlClient  *githubv4.Client
	graphqlURL string // empty for github.com
	owner      string
	repo       string
	token      string
	host       string // extra host accepted by MatchesURL (GHES)
}

// NewBackend creates a new GitHub backend for the given owner/repo.
// REST calls go through ETag caching and secondary rate limit handling.
func NewBackend(owner, repo, token string) *Backend {
	client := gh.NewClient(newHTTPClient()).WithAuthToken(token)
	return &Backend{
		client: client,
		owner:  owner,
		repo:   repo,
		token:  token,
	}
}

// NewEnterpriseBackend creates a backend for a GitHub Enterprise Server whose
// web root is baseURL (e.g. https://git.example.com/).
func NewEnterpriseBackend(owner, repo, token, baseURL string) (*Backend, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid GitHub base URL %q", baseURL)
	}
	root := strings.TrimSuffix(u.String(), "/") + "/"
	client, err := gh.NewClient(newHTTPClient()).WithAuthToken(token).WithEnterpriseURLs(root, root)
	if err != nil {
		return nil, fmt.Errorf("configuring enterprise URLs: %w", err)
	}
	return &Backend{
		client:     client,
		graphqlURL: root + "api/graphql",
		owner:      owner,
		repo:       repo,
		token:      token,
		host:       strings.ToLower(u.Hostname()),
	}, nil
}

// Name returns "github".
func (b *Backend) Name() string {
	return "github"
}

// MatchesURL returns true if the URL belongs to GitHub or the configured
// enterprise host.
func (b *Backend) MatchesURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "github.com" || host == "www.github.com" || (b.host != "" && host == b.host)
}

// GetPR retrieves pull request information by ID or URL.
func (b *Backend) GetPR(ctx context.Context, id string) (*provider.PRInfo, error) {
	parsed, err := b.parsePRIdentifier(id)
	if err != nil {
		return nil, fmt.Errorf("could not parse PR identifier %q: %w", id, err)
	}

	pr, _, err := b.client.PullRequests.Get(ctx, parsed.Owner, parsed.Repo, parsed.Number)
	if err != nil {
		return nil, apiError("get PR", err)
	}

	return b.mapPR(pr, parsed.Owner, parsed.Repo), nil
}

// GetChangedFiles lists the files of a pull request with their patches.
func (b *Backend) GetChangedFiles(ctx context.Context, pr *provider.PRInfo) ([]provider.ChangedFile, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	prNum, err := strconv.Atoi(pr.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid PR number: %s", pr.ID)
	}

	var files []provider.ChangedFile
	opts := &gh.ListOptions{PerPage: 100}
	for {
		page, resp, err := b.client.PullRequests.ListFiles(ctx, owner, repo, prNum, opts)
		if err != nil {
			return nil, apiError("list PR files", err)
		}
		for _, f := range page {
			files = append(files, provider.ChangedFile{
				Path:   f.GetFilename(),
				Status: f.GetStatus(),
				Patch:  f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

// GetComments retrieves all review comments on a pull request. General
// issue comments cannot carry a thread and are not returned.
func (b *Backend) GetComments(ctx context.Context, pr *provider.PRInfo) ([]provider.Comment, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	prNum, err := strconv.Atoi(pr.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid PR number: %s", pr.ID)
	}

	var comments []provider.Comment
	opts := &gh.PullRequestListCommentsOptions{
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	for {
		page, resp, err := b.client.PullRequests.ListComments(ctx, owner, repo, prNum, opts)
		if err != nil {
			return nil, apiError("list review comments", err)
		}
		for _, c := range page {
			comments = append(comments, mapComment(c))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}

// GetComment retrieves a single review comment.
func (b *Backend) GetComment(ctx context.Context, pr *provider.PRInfo, commentID string) (*provider.Comment, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	id, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid comment ID: %s", commentID)
	}

	c, _, err := b.client.PullRequests.GetComment(ctx, owner, repo, id)
	if err != nil {
		return nil, apiError("get review comment", err)
	}
	out := mapComment(c)
	return &out, nil
}

// PostInlineComment posts a comment on a specific file and line in the PR diff.
// Uses CreateReview with a single comment to avoid secondary rate limits, then
// reads the review back to learn the comment's ID.
func (b *Backend) PostInlineComment(ctx context.Context, pr *provider.PRInfo, comment provider.InlineComment) (*provider.Comment, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	prNum, err := strconv.Atoi(pr.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid PR number: %s", pr.ID)
	}

	commitID := comment.CommitID
	if commitID == "" {
		commitID = pr.HeadSHA
	}
	if commitID == "" {
		ghPR, _, err := b.client.PullRequests.Get(ctx, owner, repo, prNum)
		if err != nil {
			return nil, apiError("get PR for head SHA", err)
		}
		commitID = ghPR.GetHead().GetSHA()
	}

	side := "RIGHT"
	if strings.EqualFold(comment.Side, "left") {
		side = "LEFT"
	}

	review, _, err := b.client.PullRequests.CreateReview(ctx, owner, repo, prNum, &gh.PullRequestReviewRequest{
		CommitID: gh.Ptr(commitID),
		Event:    gh.Ptr("COMMENT"),
		Comments: []*gh.DraftReviewComment{
			{
				Path: gh.Ptr(comment.FilePath),
				Line: gh.Ptr(comment.Line),
				Side: gh.Ptr(side),
				Body: gh.Ptr(comment.Body),
			},
		},
	})
	if err != nil {
		return nil, apiError("post inline comment", err)
	}

	posted := &provider.Comment{Body: comment.Body, FilePath: comment.FilePath, Line: comment.Line}
	created, _, err := b.client.PullRequests.ListReviewComments(ctx, owner, repo, prNum, review.GetID(), &gh.ListOptions{PerPage: 1})
	if err != nil {
		slog.Warn("posted review but could not read back its comment", "review", review.GetID(), "error", err)
		return posted, nil
	}
	if len(created) > 0 {
		c := mapComment(created[0])
		posted = &c
	}
	return posted, nil
}

// ReplyToComment adds a reply to an existing review comment thread.
// commentID must be the root comment ID of the thread.
func (b *Backend) ReplyToComment(ctx context.Context, pr *provider.PRInfo, commentID string, body string) (*provider.Comment, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	prNum, err := strconv.Atoi(pr.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid PR number: %s", pr.ID)
	}

	id, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid thread/comment ID: %s", commentID)
	}

	c, _, err := b.client.PullRequests.CreateCommentInReplyTo(ctx, owner, repo, prNum, body, id)
	if err != nil {
		return nil, apiError("reply to comment", err)
	}
	out := mapComment(c)
	return &out, nil
}

// UpdateComment replaces the body of a review comment.
func (b *Backend) UpdateComment(ctx context.Context, pr *provider.PRInfo, commentID string, body string) error {
	owner, repo := b.resolveOwnerRepo(pr)
	id, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment ID: %s", commentID)
	}

	if _, _, err := b.client.PullRequests.EditComment(ctx, owner, repo, id, &gh.PullRequestComment{Body: gh.Ptr(body)}); err != nil {
		return apiError("update comment", err)
	}
	return nil
}

// ResolveComment resolves the review thread containing the given comment
// using the GraphQL API; REST cannot resolve threads. A thread node ID
// ("PRRT_...") is used as is, a numeric comment ID is looked up first.
func (b *Backend) ResolveComment(ctx context.Context, pr *provider.PRInfo, commentID string, resolution provider.CommentResolution) error {
	if resolution == provider.ResolutionUnknown {
		return fmt.Errorf("invalid comment resolution: %d", resolution)
	}

	gql := b.getGraphQLClient(ctx)

	threadID := commentID
	if !strings.HasPrefix(commentID, "PRRT_") {
		var err error
		threadID, err = b.findThread(ctx, gql, pr, commentID)
		if err != nil {
			return err
		}
		if threadID == "" {
			return nil
		}
	}

	var mutation struct {
		ResolveReviewThread struct {
			Thread struct {
				IsResolved bool
			}
		} `graphql:"resolveReviewThread(input: $input)"`
	}

	input := githubv4.ResolveReviewThreadInput{
		ThreadID: githubv4.ID(threadID),
	}

	if err := gql.Mutate(ctx, &mutation, input, nil); err != nil {
		return fmt.Errorf("failed to resolve review thread: %w", err)
	}

	return nil
}

// findThread returns the node ID of the review thread whose first comment
// has the given database ID, or "" when the thread is already resolved.
func (b *Backend) findThread(ctx context.Context, gql *githubv4.Client, pr *provider.PRInfo, commentID string) (string, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	prNum, err := strconv.Atoi(pr.ID)
	if err != nil {
		return "", fmt.Errorf("invalid PR number: %s", pr.ID)
	}
	want, err := strconv.ParseInt(commentID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid comment ID: %s", commentID)
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(prNum),
		"cursor": (*githubv4.String)(nil),
	}
	for {
		var q reviewThreadsQuery
		if err := gql.Query(ctx, &q, vars); err != nil {
			return "", fmt.Errorf("listing review threads: %w", err)
		}
		threads := q.Repository.PullRequest.ReviewThreads
		for _, t := range threads.Nodes {
			if len(t.Comments.Nodes) == 0 || t.Comments.Nodes[0].DatabaseID != want {
				continue
			}
			if t.IsResolved {
				return "", nil
			}
			return fmt.Sprint(t.ID), nil
		}
		if !threads.PageInfo.HasNextPage {
			break
		}
		vars["cursor"] = githubv4.NewString(threads.PageInfo.EndCursor)
	}
	return "", fmt.Errorf("no review thread for comment %s: %w", commentID, provider.ErrNotFound)
}

// --- Internal helpers ---

// parsePRIdentifier extracts owner, repo, and PR number from a string.
// Accepts bare numbers, "owner/repo#number", or full PR URLs.
func (b *Backend) parsePRIdentifier(id string) (*prIdentifier, error) {
	// Bare number: use the backend owner and repo.
	if num, err := strconv.Atoi(id); err == nil {
		return &prIdentifier{Owner: b.owner, Repo: b.repo, Number: num}, nil
	}

	// Try "owner/repo#number" format.
	if parts := strings.SplitN(id, "#", 2); len(parts) == 2 {
		ownerRepo := strings.SplitN(parts[0], "/", 2)
		if len(ownerRepo) == 2 {
			num, err := strconv.Atoi(parts[1])
			if err == nil {
				return &prIdentifier{Owner: ownerRepo[0], Repo: ownerRepo[1], Number: num}, nil
			}
		}
	}

	// Try URL: https://github.com/{owner}/{repo}/pull/{number}
	u, err := url.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid PR identifier: %s", id)
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(pathParts) >= 4 && pathParts[2] == "pull" {
		num, err := strconv.Atoi(pathParts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid PR number in URL: %s", pathParts[3])
		}
		return &prIdentifier{Owner: pathParts[0], Repo: pathParts[1], Number: num}, nil
	}

	return nil, fmt.Errorf("could not parse PR identifier: %s", id)
}

// mapPR converts a GitHub PullRequest to provider.PRInfo.
func (b *Backend) mapPR(pr *gh.PullRequest, owner, repo string) *provider.PRInfo {
	status := "active"
	if pr.GetMerged() {
		status = "completed"
	} else if pr.GetState() == "closed" {
		status = "abandoned"
	}

	return &provider.PRInfo{
		ID:           strconv.Itoa(pr.GetNumber()),
		Title:        pr.GetTitle(),
		Description:  pr.GetBody(),
		Status:       status,
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		HeadSHA:      pr.GetHead().GetSHA(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		Owner:        owner,
		Repo:         repo,
	}
}

// mapComment converts a review comment. GitHub always points in_reply_to at
// the thread's first comment.
func mapComment(c *gh.PullRequestComment) provider.Comment {
	out := provider.Comment{
		ID:        strconv.FormatInt(c.GetID(), 10),
		NodeID:    c.GetNodeID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		FilePath:  c.GetPath(),
		Line:      c.GetLine(),
		CreatedAt: c.GetCreatedAt().Time,
		UpdatedAt: c.GetUpdatedAt().Time,
	}
	if out.Line == 0 {
		out.Line = c.GetOriginalLine()
	}
	if c.GetInReplyTo() != 0 {
		out.InReplyTo = strconv.FormatInt(c.GetInReplyTo(), 10)
	}
	return out
}

// resolveOwnerRepo returns the owner and repo for API calls, preferring
// values from the PRInfo if available.
func (b *Backend) resolveOwnerRepo(pr *provider.PRInfo) (string, string) {
	owner := b.owner
	repo := b.repo
	if pr.Owner != "" {
		owner = pr.Owner
	}
	if pr.Repo != "" {
		repo = pr.Repo
	}
	return owner, repo
}

// apiError wraps a go-github error with its HTTP status so the retry layer
// can tell transient failures from final ones.
func apiError(op string, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var respErr *gh.ErrorResponse
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%s: %w", op, &provider.APIError{StatusCode: http.StatusTooManyRequests, Err: err})
	case errors.As(err, &respErr) && respErr.Response != nil:
		code := respErr.Response.StatusCode
		if code == http.StatusNotFound {
			err = fmt.Errorf("%w: %s", provider.ErrNotFound, respErr.Message)
		}
		return fmt.Errorf("%s: %w", op, &provider.APIError{StatusCode: code, Err: err})
	}
	return fmt.Errorf("%s: %w", op, err)
}

// getGraphQLClient returns (and lazily creates) the GitHub GraphQL client.
// Thread-safe via sync.Once.
func (b *Backend) getGraphQLClient(ctx context.Context) *githubv4.Client {
	b.gqlOnce.Do(func() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.token})
		httpClient := oauth2.NewClient(ctx, ts)
		if b.graphqlURL != "" {
			b.gqlClient = githubv4.NewEnterpriseClient(b.graphqlURL, httpClient)
			return
		}
		b.gqlClient = githubv4.NewClient(httpClient)
	})
	return b.gqlClient
}

// Verify Backend implements PRBackend at compile time.
var _ provider.PRBackend = (*Backend)(nil)
