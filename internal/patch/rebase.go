package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrContextLost means a hunk's original lines no longer exist anywhere
	// in the file, so the patch cannot be relocated.
	ErrContextLost = errors.New("patch context no longer present")
	// ErrAlreadyPresent means the file already contains the patch's result.
	ErrAlreadyPresent = errors.New("patch result already present")
)

// Rebased is a patch relocated onto new file content.
type Rebased struct {
	Patch *Patch
	// Shifts holds, per hunk, how many lines its old start moved.
	Shifts []int

	orig *Patch
}

// Line maps a line number from the original patch's coordinates to the
// rebased ones: the shift of the hunk containing it, or of the first hunk.
// Non-positive lines are returned unchanged.
func (r *Rebased) Line(old int) int {
	if old <= 0 || len(r.Shifts) == 0 {
		return old
	}
	shift := r.Shifts[0]
	for i, h := range r.orig.Hunks {
		end := h.OldStart + max(h.OldLines, 1)
		if old >= h.OldStart && old < end {
			shift = r.Shifts[i]
			break
		}
	}
	return max(old+shift, 1)
}

// Rebase relocates every hunk of p onto content. Unlike Apply it searches
// the whole file, choosing the match nearest the expected position, and the
// result only depends on content and p, so repeating it is stable.
//
// Context and removed lines take the file's actual text so that a loose
// match becomes exact, and headers are recomputed from the new positions.
func Rebase(content string, p *Patch) (*Rebased, error) {
	src := splitLines(content).lines
	out := &Patch{OldName: p.OldName, NewName: p.NewName}
	shifts := make([]int, 0, len(p.Hunks))

	cursor, drift, accum := 0, 0, 0
	for i, h := range p.Hunks {
		old := h.oldImage()
		if len(old) == 0 {
			return nil, fmt.Errorf("hunk %d: %w: no context to anchor on", i+1, ErrContextLost)
		}
		declared := h.oldIndex()
		predicted := declared + drift

		pos, ok := nearest(src, old, predicted, cursor, exactEqual)
		if !ok {
			pos, ok = nearest(src, old, predicted, cursor, looseEqual)
		}
		if !ok {
			if _, found := nearest(src, h.newImage(), predicted, cursor, exactEqual); found && len(h.newImage()) > 0 {
				return nil, fmt.Errorf("hunk %d: %w", i+1, ErrAlreadyPresent)
			}
			return nil, fmt.Errorf("hunk %d: %w", i+1, ErrContextLost)
		}

		nh := Hunk{Section: h.Section, Lines: make([]Line, 0, len(h.Lines))}
		j := pos
		for _, l := range h.Lines {
			if l.Kind == Add {
				nh.Lines = append(nh.Lines, l)
				continue
			}
			nh.Lines = append(nh.Lines, Line{Kind: l.Kind, Text: src[j]})
			j++
		}
		nh.recount()

		nh.OldStart = pos + 1
		if nh.OldLines == 0 {
			nh.OldStart = pos
		}
		nh.NewStart = pos + 1 + accum
		if nh.NewLines == 0 {
			nh.NewStart = pos + accum
		}

		out.Hunks = append(out.Hunks, nh)
		shifts = append(shifts, nh.OldStart-h.OldStart)
		accum += nh.NewLines - nh.OldLines
		cursor = pos + len(old)
		drift = pos - declared
	}

	return &Rebased{Patch: out, Shifts: shifts, orig: p}, nil
}

// nearest returns the match position closest to predicted at or after
// cursor; ties go to the earlier position.
func nearest(lines, want []string, predicted, cursor int, eq func(a, b string) bool) (int, bool) {
	if len(want) == 0 {
		return 0, false
	}
	best, bestDist := -1, 0
	for pos := cursor; pos+len(want) <= len(lines); pos++ {
		if !matchAt(lines, want, pos, eq) {
			continue
		}
		d := pos - predicted
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = pos, d
		}
	}
	return best, best >= 0
}

// HashContent returns the hex sha256 of a file's content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
