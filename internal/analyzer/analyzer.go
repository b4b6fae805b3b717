// Package analyzer finds issues in changed files and attaches a patch to each.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/llm"
	"github.com/alanmeadows/applybot/internal/patch"
	"github.com/alanmeadows/applybot/internal/prompts"
)

// Analyzer inspects one changed file and returns the issues it found.
type Analyzer interface {
	Analyze(ctx context.Context, file, diff string) ([]issue.Record, error)
}

// FileReader reads a file of the working copy by repository-relative path.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Options controls which issues survive analysis.
type Options struct {
	// MinLevel drops issues less severe than this (default LOW keeps everything).
	MinLevel string
	// Window is the search window used to dry-run each patch.
	Window int
	// WorkDir is handed to the LLM session.
	WorkDir string
}

// LLMAnalyzer asks an LLM for issues using the analyze-file prompt.
type LLMAnalyzer struct {
	client llm.Client
	files  FileReader
	opts   Options
}

// New creates an LLMAnalyzer.
func New(client llm.Client, files FileReader, opts Options) *LLMAnalyzer {
	if opts.MinLevel == "" {
		opts.MinLevel = "LOW"
	}
	return &LLMAnalyzer{client: client, files: files, opts: opts}
}

// Analyze returns the issues for file whose patches apply cleanly to the
// current working copy, most severe first within the original order.
func (a *LLMAnalyzer) Analyze(ctx context.Context, file, diff string) ([]issue.Record, error) {
	content, err := a.files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	prompt, err := prompts.Execute("analyze-file.md", map[string]string{
		"file":    file,
		"diff":    diff,
		"content": string(content),
	})
	if err != nil {
		return nil, err
	}

	raw, sessionID, err := llm.Ask(ctx, a.client, "analyze "+path.Base(file), a.opts.WorkDir, prompt)
	if err != nil {
		return nil, err
	}
	defer llm.Release(ctx, a.client, sessionID)

	records, err := llm.DecodeJSON[[]issue.Record](ctx, a.client, sessionID, raw)
	if err != nil {
		return nil, fmt.Errorf("parsing issues for %s: %w", file, err)
	}

	kept := Filter(file, content, records, a.opts.MinLevel, patch.NewApplier(a.opts.Window))
	slog.Info("analyzed file", "file", file, "found", len(records), "kept", len(kept))
	return kept, nil
}

// Filter prepares raw records for posting. It drops records for other files,
// below minLevel, whose patch has a hunk without context lines, or whose
// patch does not apply to content; normalizes the
// survivors' severity and patch text; fills a missing line from the first
// hunk; and stamps the content hash the patch was checked against.
func Filter(file string, content []byte, records []issue.Record, minLevel string, applier *patch.Applier) []issue.Record {
	hash := patch.HashContent(content)
	out := make([]issue.Record, 0, len(records))

	for _, rec := range issue.FilterByLevel(records, minLevel) {
		if rec.File == "" {
			rec.File = file
		}
		if rec.File != file {
			slog.Debug("dropping issue for another file", "file", rec.File, "analyzed", file)
			continue
		}

		p, err := patch.Parse(rec.Patch)
		if err != nil {
			slog.Debug("dropping issue without a usable patch", "file", file, "line", rec.Line, "error", err)
			continue
		}
		if !p.Anchored() {
			slog.Debug("dropping issue whose patch has no context to anchor on", "file", file, "line", rec.Line)
			continue
		}
		res := applier.Apply(string(content), p)
		if res.Status != patch.StatusApplied {
			slog.Warn("dropping issue whose patch does not apply", "file", file, "line", rec.Line, "status", res.Status)
			continue
		}

		rec.Severity = issue.NormalizeSeverity(rec.Severity)
		rec.Patch = p.String()
		rec.FileHash = hash
		if rec.Line <= 0 {
			rec.Line = max(p.Hunks[0].NewStart, 1)
		}
		out = append(out, rec)
	}
	return out
}
