package github

import (
	"fmt"
	"strconv"

	gh "github.com/google/go-github/v82/github"
)

// EventKind is the pipeline stage an Actions event maps to.
type EventKind int

const (
	// EventIgnored needs no processing.
	EventIgnored EventKind = iota
	// EventOpened is a pull request opened or reopened.
	EventOpened
	// EventSynchronize is a push to the pull request branch.
	EventSynchronize
	// EventReply is a new review comment.
	EventReply
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventSynchronize:
		return "synchronize"
	case EventReply:
		return "reply"
	default:
		return "ignored"
	}
}

// Event is the part of a webhook payload the pipeline needs.
type Event struct {
	Kind     EventKind
	Name     string
	Action   string
	Owner    string
	Repo     string
	PRNumber int
	// HeadSHA is the pull request head after the event.
	HeadSHA string
	// Before is the previous head for synchronize events.
	Before    string
	CommentID string
	InReplyTo string
	Author    string
}

// PRID returns the pull request number as a provider ID.
func (e *Event) PRID() string {
	return strconv.Itoa(e.PRNumber)
}

// ParseEvent decodes a GitHub Actions event payload (the file named by
// GITHUB_EVENT_PATH) for the event named by GITHUB_EVENT_NAME.
func ParseEvent(name string, payload []byte) (*Event, error) {
	switch name {
	case "pull_request", "pull_request_target", "pull_request_review_comment":
	default:
		return &Event{Kind: EventIgnored, Name: name}, nil
	}

	// pull_request_target carries the same payload as pull_request.
	msgType := name
	if name == "pull_request_target" {
		msgType = "pull_request"
	}
	raw, err := gh.ParseWebHook(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", name, err)
	}

	switch ev := raw.(type) {
	case *gh.PullRequestEvent:
		out := &Event{
			Name:     name,
			Action:   ev.GetAction(),
			Owner:    ev.GetRepo().GetOwner().GetLogin(),
			Repo:     ev.GetRepo().GetName(),
			PRNumber: ev.GetNumber(),
			HeadSHA:  ev.GetPullRequest().GetHead().GetSHA(),
			Before:   ev.GetBefore(),
		}
		if out.PRNumber == 0 {
			out.PRNumber = ev.GetPullRequest().GetNumber()
		}
		switch out.Action {
		case "opened", "reopened":
			out.Kind = EventOpened
		case "synchronize":
			out.Kind = EventSynchronize
		}
		return out, nil

	case *gh.PullRequestReviewCommentEvent:
		out := &Event{
			Name:      name,
			Action:    ev.GetAction(),
			Owner:     ev.GetRepo().GetOwner().GetLogin(),
			Repo:      ev.GetRepo().GetName(),
			PRNumber:  ev.GetPullRequest().GetNumber(),
			HeadSHA:   ev.GetPullRequest().GetHead().GetSHA(),
			CommentID: strconv.FormatInt(ev.GetComment().GetID(), 10),
			Author:    ev.GetComment().GetUser().GetLogin(),
		}
		if id := ev.GetComment().GetInReplyTo(); id != 0 {
			out.InReplyTo = strconv.FormatInt(id, 10)
		}
		if out.Action == "created" {
			out.Kind = EventReply
		}
		return out, nil
	}

	return &Event{Kind: EventIgnored, Name: name}, nil
}
