package issue

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStatus is returned when a status cannot be written to a comment.
var ErrInvalidStatus = errors.New("invalid comment status")

// Status is the lifecycle state of an issue comment.
type Status int

const (
	// StatusUnmarked means the body carries no status marker.
	StatusUnmarked Status = iota
	// StatusAnalyzed means the issue is posted and may be applied or refreshed.
	StatusAnalyzed
	// StatusApplied means the patch was committed; the comment is frozen.
	StatusApplied
)

func (s Status) String() string {
	switch s {
	case StatusAnalyzed:
		return "analyzed"
	case StatusApplied:
		return "applied"
	default:
		return "unmarked"
	}
}

// Pending reports whether an issue in this state may still be applied or refreshed.
// Unmarked comments count as pending for compatibility with comments posted
// before status markers existed.
func (s Status) Pending() bool {
	return s != StatusApplied
}

// ParseStatus converts a marker value into a Status.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "analyzed":
		return StatusAnalyzed, nil
	// gc-integrated is the terminal state written by the resource generators.
	case "applied", "gc-integrated":
		return StatusApplied, nil
	case "unmarked", "":
		return StatusUnmarked, nil
	}
	return StatusUnmarked, fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}
