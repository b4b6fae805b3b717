// Package patch parses, applies and relocates unified diffs against a
// single file's content.
package patch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a patch has no usable hunk.
var ErrMalformed = errors.New("malformed patch")

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// LineKind classifies a hunk line.
type LineKind int

const (
	Context LineKind = iota
	Delete
	Add
)

func (k LineKind) prefix() string {
	switch k {
	case Delete:
		return "-"
	case Add:
		return "+"
	default:
		return " "
	}
}

// Line is one line of a hunk body, without its prefix.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is a single @@ block. Counts always match the body.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	// Section is the optional text after the closing @@.
	Section string
	Lines   []Line
}

// Patch is a parsed single-file unified diff.
type Patch struct {
	OldName string
	NewName string
	Hunks   []Hunk
}

// oldImage returns the lines the hunk expects to find.
func (h Hunk) oldImage() []string {
	out := make([]string, 0, h.OldLines)
	for _, l := range h.Lines {
		if l.Kind != Add {
			out = append(out, l.Text)
		}
	}
	return out
}

// newImage returns the lines the hunk leaves behind.
func (h Hunk) newImage() []string {
	out := make([]string, 0, h.NewLines)
	for _, l := range h.Lines {
		if l.Kind != Delete {
			out = append(out, l.Text)
		}
	}
	return out
}

// oldIndex is the 0-based index of the first line of the old image. A hunk
// with no old lines names the line it inserts after.
func (h Hunk) oldIndex() int {
	if h.OldLines == 0 {
		return h.OldStart
	}
	return h.OldStart - 1
}

func (h *Hunk) recount() {
	h.OldLines, h.NewLines = 0, 0
	for _, l := range h.Lines {
		switch l.Kind {
		case Context:
			h.OldLines++
			h.NewLines++
		case Delete:
			h.OldLines++
		case Add:
			h.NewLines++
		}
	}
}

// Normalize repairs the common ways generated patches go wrong: escaped
// newlines in a single-line blob and CRLF line endings.
func Normalize(text string) string {
	if !strings.Contains(text, "\n") && strings.Contains(text, `\n`) {
		text = strings.ReplaceAll(text, `\n`, "\n")
	}
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// Parse reads a unified diff for one file. It is lenient: file headers are
// optional, unprefixed lines inside a hunk are read as context, trailing
// blank lines are dropped and header counts are recomputed from the body.
func Parse(text string) (*Patch, error) {
	lines := strings.Split(Normalize(text), "\n")
	p := &Patch{}

	var cur *Hunk
	pendingBlank := 0
	flush := func() {
		if cur != nil && len(cur.Lines) > 0 {
			cur.recount()
			p.Hunks = append(p.Hunks, *cur)
		}
		cur = nil
		pendingBlank = 0
	}

	for i := 0; i < len(lines); i++ {
		raw := lines[i]

		if m := hunkHeaderRe.FindStringSubmatch(raw); m != nil {
			flush()
			cur = &Hunk{
				OldStart: atoi(m[1]),
				NewStart: atoi(m[3]),
				Section:  m[5],
			}
			continue
		}

		switch {
		case strings.HasPrefix(raw, "diff "), strings.HasPrefix(raw, "index "):
			flush()
			continue
		case strings.HasPrefix(raw, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			flush()
			p.OldName = headerName(raw[4:])
			p.NewName = headerName(lines[i+1][4:])
			i++
			continue
		}

		if cur == nil {
			continue
		}

		if raw == "" {
			pendingBlank++
			continue
		}
		if strings.HasPrefix(raw, `\`) {
			continue
		}
		for ; pendingBlank > 0; pendingBlank-- {
			cur.Lines = append(cur.Lines, Line{Kind: Context})
		}

		switch raw[0] {
		case ' ':
			cur.Lines = append(cur.Lines, Line{Kind: Context, Text: raw[1:]})
		case '-':
			cur.Lines = append(cur.Lines, Line{Kind: Delete, Text: raw[1:]})
		case '+':
			cur.Lines = append(cur.Lines, Line{Kind: Add, Text: raw[1:]})
		default:
			cur.Lines = append(cur.Lines, Line{Kind: Context, Text: raw})
		}
	}
	flush()

	if len(p.Hunks) == 0 {
		return nil, fmt.Errorf("%w: no hunks", ErrMalformed)
	}
	if !p.changes() {
		return nil, fmt.Errorf("%w: no added or removed lines", ErrMalformed)
	}
	return p, nil
}

func (p *Patch) changes() bool {
	for _, h := range p.Hunks {
		for _, l := range h.Lines {
			if l.Kind != Context {
				return true
			}
		}
	}
	return false
}

// Anchored reports whether every hunk carries at least one context or
// removed line. A pure insertion cannot be located again once the file moves.
func (p *Patch) Anchored() bool {
	for _, h := range p.Hunks {
		if len(h.oldImage()) == 0 {
			return false
		}
	}
	return true
}

func headerName(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "/dev/null" {
		return s
	}
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		return s[2:]
	}
	return s
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// String renders the patch in unified diff format.
func (p *Patch) String() string {
	var sb strings.Builder
	if p.OldName != "" || p.NewName != "" {
		fmt.Fprintf(&sb, "--- %s\n+++ %s\n", fileHeader("a/", p.OldName), fileHeader("b/", p.NewName))
	}
	for _, h := range p.Hunks {
		fmt.Fprintf(&sb, "@@ -%s +%s @@%s\n", formatRange(h.OldStart, h.OldLines), formatRange(h.NewStart, h.NewLines), h.Section)
		for _, l := range h.Lines {
			sb.WriteString(l.Kind.prefix())
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func fileHeader(prefix, name string) string {
	if name == "" || name == "/dev/null" {
		return "/dev/null"
	}
	return prefix + name
}

func formatRange(start, count int) string {
	if count == 1 {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
