package patch

import (
	"fmt"
	"strings"
)

// DefaultWindow is how far, in lines, a hunk may drift from its declared
// position and still apply.
const DefaultWindow = 30

// Status is the outcome of applying a patch.
type Status int

const (
	StatusApplied Status = iota
	StatusConflict
	StatusNoop
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusConflict:
		return "conflict"
	default:
		return "noop"
	}
}

// ConflictError describes the first hunk that could not be placed.
type ConflictError struct {
	// Hunk is the 1-based hunk number.
	Hunk int
	// Line is the declared 1-based line of the hunk in the old file.
	Line   int
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("hunk %d at line %d: %s", e.Hunk, e.Line, e.Reason)
}

// Result is what Apply produced. Content is always a complete file: the
// patched text when applied, the untouched input otherwise.
type Result struct {
	Status  Status
	Content string
	// AlreadyApplied is set on a noop where every hunk's post-image was
	// already in place.
	AlreadyApplied bool
	// Offsets holds, per hunk, how far it moved from its declared line.
	Offsets  []int
	Conflict *ConflictError
}

// Applier applies patches with a bounded search window.
type Applier struct {
	Window int
}

// NewApplier returns an Applier searching window lines either side of each
// hunk's expected position; window <= 0 selects DefaultWindow.
func NewApplier(window int) *Applier {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Applier{Window: window}
}

// ApplyText parses patchText and applies it to content. Parse failures are
// returned as errors; content conflicts are reported in the Result.
func (a *Applier) ApplyText(content, patchText string) (Result, error) {
	p, err := Parse(patchText)
	if err != nil {
		return Result{Status: StatusConflict, Content: content}, err
	}
	return a.Apply(content, p), nil
}

// Apply applies every hunk of p to content or none of them.
//
// Each hunk is tried at its declared line shifted by the drift of the
// previous hunk, then at increasing distances up to the window, first with
// exact comparison and then ignoring trailing whitespace. Hunks must appear
// in order and may not overlap.
func (a *Applier) Apply(content string, p *Patch) Result {
	src := splitLines(content)

	if a.alreadyApplied(src.lines, p) {
		return Result{Status: StatusNoop, Content: content, AlreadyApplied: true}
	}

	out := make([]string, 0, len(src.lines))
	offsets := make([]int, 0, len(p.Hunks))
	cursor, drift := 0, 0

	for i, h := range p.Hunks {
		old := h.oldImage()
		declared := h.oldIndex()
		predicted := declared + drift

		var pos int
		if len(old) == 0 {
			pos = clamp(predicted, cursor, len(src.lines))
		} else {
			var ok bool
			pos, ok = a.locate(src.lines, old, predicted, cursor)
			if !ok {
				return Result{
					Status:  StatusConflict,
					Content: content,
					Conflict: &ConflictError{
						Hunk:   i + 1,
						Line:   h.OldStart,
						Reason: fmt.Sprintf("context not found within %d lines", a.window()),
					},
				}
			}
		}

		out = append(out, src.lines[cursor:pos]...)
		out = append(out, h.replace(src.lines, pos)...)
		cursor = pos + len(old)
		drift = pos - declared
		offsets = append(offsets, drift)
	}
	out = append(out, src.lines[cursor:]...)

	newContent := joinLines(out, src.trailingNewline || content == "")
	if newContent == content {
		return Result{Status: StatusNoop, Content: content, Offsets: offsets}
	}
	return Result{Status: StatusApplied, Content: newContent, Offsets: offsets}
}

// alreadyApplied reports whether the post-image of every hunk is present
// near its declared position while its pre-image is not. Pre-images that
// survive inside their own post-image (appends after context) do not count
// against. A hunk with an empty post-image cannot be confirmed.
func (a *Applier) alreadyApplied(lines []string, p *Patch) bool {
	cursor, drift := 0, 0
	for _, h := range p.Hunks {
		img := h.newImage()
		if len(img) == 0 {
			return false
		}
		declared := h.NewStart - 1
		if h.NewLines == 0 {
			declared = h.NewStart
		}
		pos, ok := a.locateExact(lines, img, declared+drift, cursor)
		if !ok {
			return false
		}
		if old := h.oldImage(); len(old) > 0 && !sameLines(old, img) && !contains(img, old) {
			if _, found := a.locateExact(lines, old, declared+drift, cursor); found {
				return false
			}
		}
		cursor = pos + len(img)
		drift = pos - declared
	}
	return true
}

// replace returns the hunk's post-image for an old image found at pos.
// Context lines keep the file's text, which differs from the hunk's only
// when the match was whitespace-insensitive.
func (h Hunk) replace(lines []string, pos int) []string {
	out := make([]string, 0, h.NewLines)
	for _, l := range h.Lines {
		switch l.Kind {
		case Context:
			out = append(out, lines[pos])
			pos++
		case Delete:
			pos++
		case Add:
			out = append(out, l.Text)
		}
	}
	return out
}

func (a *Applier) window() int {
	if a.Window <= 0 {
		return DefaultWindow
	}
	return a.Window
}

// locate finds old near predicted: exact comparison across the whole window
// first, then the same walk with trailing whitespace ignored.
func (a *Applier) locate(lines, old []string, predicted, cursor int) (int, bool) {
	if pos, ok := a.locateExact(lines, old, predicted, cursor); ok {
		return pos, true
	}
	return a.search(lines, old, predicted, cursor, looseEqual)
}

func (a *Applier) locateExact(lines, old []string, predicted, cursor int) (int, bool) {
	return a.search(lines, old, predicted, cursor, exactEqual)
}

func (a *Applier) search(lines, old []string, predicted, cursor int, eq func(a, b string) bool) (int, bool) {
	for d := 0; d <= a.window(); d++ {
		for _, pos := range []int{predicted - d, predicted + d} {
			if pos < cursor || pos+len(old) > len(lines) {
				continue
			}
			if matchAt(lines, old, pos, eq) {
				return pos, true
			}
			if d == 0 {
				break
			}
		}
	}
	return 0, false
}

func matchAt(lines, want []string, pos int, eq func(a, b string) bool) bool {
	for i, w := range want {
		if !eq(lines[pos+i], w) {
			return false
		}
	}
	return true
}

func exactEqual(a, b string) bool { return a == b }

func looseEqual(a, b string) bool {
	return strings.TrimRight(a, " \t\r") == strings.TrimRight(b, " \t\r")
}

func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// contains reports whether sub occurs as a contiguous run inside full.
func contains(full, sub []string) bool {
	for i := 0; i+len(sub) <= len(full); i++ {
		if matchAt(full, sub, i, exactEqual) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type fileLines struct {
	lines           []string
	trailingNewline bool
}

func splitLines(content string) fileLines {
	if content == "" {
		return fileLines{}
	}
	trailing := strings.HasSuffix(content, "\n")
	body := strings.TrimSuffix(content, "\n")
	return fileLines{lines: strings.Split(body, "\n"), trailingNewline: trailing}
}

func joinLines(lines []string, trailingNewline bool) string {
	if len(lines) == 0 {
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailingNewline {
		s += "\n"
	}
	return s
}
