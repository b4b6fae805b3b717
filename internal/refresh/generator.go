package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanmeadows/applybot/internal/issue"
	"github.com/alanmeadows/applybot/internal/llm"
	"github.com/alanmeadows/applybot/internal/prompts"
)

// ErrNoPatch means the generator declined to produce a patch.
var ErrNoPatch = errors.New("generator returned no patch")

// Generator re-derives an issue's change against new file content.
type Generator interface {
	Regenerate(ctx context.Context, rec issue.Record, content string) (string, error)
}

// LLMGenerator regenerates patches with the regenerate-patch prompt.
type LLMGenerator struct {
	client  llm.Client
	workDir string
}

// NewLLMGenerator creates an LLMGenerator.
func NewLLMGenerator(client llm.Client, workDir string) *LLMGenerator {
	return &LLMGenerator{client: client, workDir: workDir}
}

// Regenerate returns a unified diff implementing rec's recommendation on content.
func (g *LLMGenerator) Regenerate(ctx context.Context, rec issue.Record, content string) (string, error) {
	prompt, err := prompts.Execute("regenerate-patch.md", map[string]string{
		"file":           rec.File,
		"description":    rec.Description,
		"recommendation": rec.Recommendation,
		"patch":          rec.Patch,
		"content":        content,
	})
	if err != nil {
		return "", err
	}

	raw, sessionID, err := llm.Ask(ctx, g.client, fmt.Sprintf("regenerate %s:%d", rec.File, rec.Line), g.workDir, prompt)
	if err != nil {
		return "", err
	}
	llm.Release(ctx, g.client, sessionID)

	diff := llm.ExtractDiff(raw)
	if diff == "" {
		return "", ErrNoPatch
	}
	return diff, nil
}
