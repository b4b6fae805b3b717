package llm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Ask runs prompt in a fresh session and returns the raw response. The
// session is deleted afterwards; if ctx ends first the prompt is aborted.
func Ask(ctx context.Context, client Client, title, workDir, prompt string) (string, string, error) {
	session, err := client.CreateSession(ctx, title, workDir)
	if err != nil {
		return "", "", fmt.Errorf("creating session: %w", err)
	}

	resp, err := client.SendPrompt(ctx, session.ID, prompt)
	if err != nil {
		if ctx.Err() != nil {
			if abortErr := client.AbortSession(context.WithoutCancel(ctx), session.ID); abortErr != nil {
				slog.Debug("aborting session failed", "session", session.ID, "error", abortErr)
			}
		}
		cleanup(ctx, client, session.ID)
		return "", "", fmt.Errorf("prompt %q failed: %w", title, err)
	}
	return resp.Content, session.ID, nil
}

// Release deletes a session returned by Ask once the caller is done with it.
func Release(ctx context.Context, client Client, sessionID string) {
	if sessionID != "" {
		cleanup(ctx, client, sessionID)
	}
}

func cleanup(ctx context.Context, client Client, sessionID string) {
	if err := client.DeleteSession(context.WithoutCancel(ctx), sessionID); err != nil {
		slog.Debug("deleting session failed", "session", sessionID, "error", err)
	}
}

var diffFenceRe = regexp.MustCompile("(?s)```(?:diff|patch)?[ \\t]*\\n(.*?)\\n?```")

// ExtractDiff pulls a unified diff out of an LLM response: fenced blocks are
// unwrapped and any preamble before the first "---" or "@@" line is dropped.
// Returns "" when the response holds no diff.
func ExtractDiff(s string) string {
	s = strings.TrimSpace(s)
	if m := diffFenceRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "--- ") || strings.HasPrefix(l, "@@") || strings.HasPrefix(l, "diff --git") {
			return strings.TrimRight(strings.Join(lines[i:], "\n"), "\n") + "\n"
		}
	}
	return ""
}
