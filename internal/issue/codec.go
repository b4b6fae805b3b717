package issue

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultApplyCommand is the reply token that applies an issue's patch.
const DefaultApplyCommand = "/apply-logs"

// AppliedLine replaces the call-to-action line once a patch is applied.
const AppliedLine = "✅ Applied"

// ReplyMarker tags every reply the bot posts in an issue thread, so its own
// replies are recognised whatever account posted them.
const ReplyMarker = "<!-- applybot:reply -->"

// ErrMalformed is returned when an ISSUE_DATA block exists but cannot be decoded.
var ErrMalformed = errors.New("malformed issue data")

// ErrNoRecord is returned when a body has no ISSUE_DATA block to update.
var ErrNoRecord = errors.New("no issue data in comment body")

var (
	issueDataRe  = regexp.MustCompile(`(?s)<!--\s*ISSUE_DATA:\s*(.+?)\s*-->`)
	statusRe     = regexp.MustCompile(`<!--\s*STATUS:\s*([\w-]+)\s*-->`)
	ctaRe        = regexp.MustCompile("(?m)^Reply with `[^`\n]+` to apply this change automatically\\.[ \t]*$")
	appliedRe    = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(AppliedLine) + `[ \t]*$`)
	fenceRe      = regexp.MustCompile("```")
	commentOpen  = "<!--"
	legacyPrefix = "**🤖"
)

// CallToAction returns the visible line inviting a reply with command.
func CallToAction(command string) string {
	return fmt.Sprintf("Reply with `%s` to apply this change automatically.", command)
}

// StatusMarker returns the hidden marker for s, or "" for StatusUnmarked.
func StatusMarker(s Status) string {
	if s == StatusUnmarked {
		return ""
	}
	return "<!-- STATUS: " + s.String() + " -->"
}

// Codec renders issue records into comment bodies.
type Codec struct {
	command string
}

// NewCodec returns a Codec whose call-to-action names command.
func NewCodec(command string) *Codec {
	if command == "" {
		command = DefaultApplyCommand
	}
	return &Codec{command: command}
}

// Command returns the apply command the codec advertises.
func (c *Codec) Command() string {
	return c.command
}

// Encode renders rec as an analyzed comment body: the visible summary, the
// call-to-action line, the status marker and the hidden ISSUE_DATA block.
func (c *Codec) Encode(rec Record) (string, error) {
	data, err := encodeRecord(rec)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**🤖 %s**", NormalizeSeverity(rec.Severity))
	if rec.Category != "" {
		fmt.Fprintf(&sb, " · %s", visible(rec.Category))
	}
	if rec.Method != "" {
		fmt.Fprintf(&sb, " · `%s`", strings.ReplaceAll(visible(rec.Method), "`", "'"))
	}
	sb.WriteString("\n\n")
	if rec.Description != "" {
		sb.WriteString(visible(rec.Description))
		sb.WriteString("\n\n")
	}
	if rec.Recommendation != "" {
		fmt.Fprintf(&sb, "**Recommendation:** %s\n\n", visible(rec.Recommendation))
	}
	if rec.Impact != "" {
		fmt.Fprintf(&sb, "**Impact:** %s\n\n", visible(rec.Impact))
	}
	if rec.Patch != "" {
		sb.WriteString("<details>\n<summary>Suggested patch</summary>\n\n```diff\n")
		sb.WriteString(DisplayPatch(rec.Patch))
		sb.WriteString("\n```\n\n</details>\n\n")
	}
	sb.WriteString(CallToAction(c.command))
	sb.WriteString("\n\n")
	sb.WriteString(StatusMarker(StatusAnalyzed))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "<!-- ISSUE_DATA: %s -->\n", data)
	return sb.String(), nil
}

// encodeRecord marshals rec compactly. encoding/json escapes '<' and '>' so
// the payload can never close the surrounding HTML comment.
func encodeRecord(rec Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encoding issue data: %w", err)
	}
	return string(data), nil
}

// visible neutralises HTML comment openers in human-readable text so that
// free-form fields cannot forge hidden markers.
func visible(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), commentOpen, "&lt;!--")
}

// DisplayPatch makes a patch safe to show inside a fenced code block: fences
// are broken up and comment openers neutralised.
func DisplayPatch(p string) string {
	p = strings.ReplaceAll(strings.TrimRight(p, "\n"), commentOpen, "&lt;!--")
	return fenceRe.ReplaceAllString(p, "`\u200b``")
}

// Decode extracts the ISSUE_DATA record from body. It returns (nil, nil)
// when the body has no block, and ErrMalformed when the block is unreadable.
func Decode(body string) (*Record, error) {
	raw, ok := rawRecord(body)
	if !ok {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec.File == "" {
		return nil, fmt.Errorf("%w: missing file", ErrMalformed)
	}
	return &rec, nil
}

func rawRecord(body string) (string, bool) {
	m := issueDataRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HasRecord reports whether body carries an ISSUE_DATA block, decodable or not.
func HasRecord(body string) bool {
	return issueDataRe.MatchString(body)
}

// StatusOf classifies body without relying on the ISSUE_DATA block. The
// hidden marker wins; otherwise the visible lines decide.
func StatusOf(body string) Status {
	if m := statusRe.FindStringSubmatch(body); m != nil {
		if s, err := ParseStatus(m[1]); err == nil && s != StatusUnmarked {
			return s
		}
	}
	switch {
	case appliedRe.MatchString(body):
		return StatusApplied
	case ctaRe.MatchString(body):
		return StatusAnalyzed
	}
	return StatusUnmarked
}

// HasMarker reports whether body contains any text the bot writes into its
// own comments: a status marker, the call-to-action line, the severity
// header, or the reply marker.
func HasMarker(body string) bool {
	if strings.Contains(body, ReplyMarker) {
		return true
	}
	if m := statusRe.FindStringSubmatch(body); m != nil {
		if s, err := ParseStatus(m[1]); err == nil && s != StatusUnmarked {
			return true
		}
	}
	return ctaRe.MatchString(body) || strings.HasPrefix(strings.TrimSpace(body), legacyPrefix)
}

// SetStatus rewrites the status marker of body, appending one when missing.
// Setting StatusApplied also swaps the call-to-action line for AppliedLine.
// Everything else, including ISSUE_DATA, is left untouched.
func SetStatus(body string, s Status) (string, error) {
	marker := StatusMarker(s)
	if marker == "" {
		return "", fmt.Errorf("%w: cannot write %s", ErrInvalidStatus, s)
	}

	out := body
	if loc := statusRe.FindStringIndex(out); loc != nil {
		out = out[:loc[0]] + marker + out[loc[1]:]
	} else {
		out = strings.TrimRight(out, " \t\r\n") + "\n\n" + marker + "\n"
	}

	// The real call-to-action is the last one; earlier matches are quoted
	// inside the description or recommendation.
	if s == StatusApplied {
		if all := ctaRe.FindAllStringIndex(out, -1); len(all) > 0 {
			loc := all[len(all)-1]
			out = out[:loc[0]] + AppliedLine + out[loc[1]:]
		}
	}
	return out, nil
}

// UpdateRecord rewrites patch, line and file_hash inside the ISSUE_DATA block
// of body. Other keys, including ones this package does not know, are kept.
func UpdateRecord(body, patch string, line int, fileHash string) (string, error) {
	loc := issueDataRe.FindStringSubmatchIndex(body)
	if loc == nil {
		return "", ErrNoRecord
	}
	raw := body[loc[2]:loc[3]]
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}

	updated := []byte(raw)
	for _, field := range []struct {
		key   string
		value any
	}{
		{"patch", patch},
		{"line", line},
		{"file_hash", fileHash},
	} {
		// Values are marshalled by encoding/json so '>' stays escaped.
		v, err := json.Marshal(field.value)
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", field.key, err)
		}
		updated, err = sjson.SetRawBytes(updated, field.key, v)
		if err != nil {
			return "", fmt.Errorf("setting %s: %w", field.key, err)
		}
	}

	return body[:loc[2]] + string(updated) + body[loc[3]:], nil
}

// RecordField reads a single top-level field from the raw ISSUE_DATA block,
// even when the rest of the record does not decode into Record.
func RecordField(body, key string) (string, bool) {
	raw, ok := rawRecord(body)
	if !ok {
		return "", false
	}
	res := gjson.Get(raw, key)
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}
