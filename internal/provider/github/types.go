package github

import "github.com/shurcooL/githubv4"

// prIdentifier holds parsed components of a GitHub PR reference.
type prIdentifier struct {
	Owner  string
	Repo   string
	Number int
}

// reviewThreadsQuery pages through a pull request's review threads with the
// database ID of each thread's first comment.
type reviewThreadsQuery struct {
	Repository struct {
		PullRequest struct {
			ReviewThreads struct {
				Nodes []struct {
					ID         githubv4.ID
					IsResolved bool
					Comments   struct {
						Nodes []struct {
							DatabaseID int64 `graphql:"databaseId"`
						}
					} `graphql:"comments(first: 1)"`
				}
				PageInfo struct {
					HasNextPage bool
					EndCursor   githubv4.String
				}
			} `graphql:"reviewThreads(first: 100, after: $cursor)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}
