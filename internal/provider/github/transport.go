package github

import (
	"net/http"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gregjones/httpcache"
)

// newHTTPClient builds the REST transport stack, outermost first:
//  1. go-github-ratelimit (sleeps through secondary rate limits)
//  2. revalidate (forces every cached GET back to the server)
//  3. httpcache (ETag conditional requests; a 304 costs no rate limit)
func newHTTPClient() *http.Client {
	cache := httpcache.NewMemoryCacheTransport()
	return github_ratelimit.NewClient(&revalidate{next: cache})
}

// revalidate marks every request max-age=0 so httpcache never answers from
// memory without asking the server. Comment bodies are the system of record
// and must always be read fresh.
type revalidate struct {
	next http.RoundTripper
}

func (r *revalidate) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		req = req.Clone(req.Context())
		req.Header.Set("Cache-Control", "max-age=0")
	}
	return r.next.RoundTrip(req)
}
