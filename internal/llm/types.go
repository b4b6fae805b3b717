// Package llm runs prompts against a language model and decodes what it
// answers: JSON issue lists for analysis and unified diffs for patch
// regeneration.
package llm

import "context"

// SessionInfo identifies an open model session.
type SessionInfo struct {
	ID    string
	Title string
}

// PromptResponse is the model's final answer to a prompt.
type PromptResponse struct {
	Content string
}

// Client is the model backend. Each prompt runs in its own session.
type Client interface {
	CreateSession(ctx context.Context, title string, workDir string) (*SessionInfo, error)
	// SendPrompt blocks until the model finishes answering.
	SendPrompt(ctx context.Context, sessionID string, prompt string) (*PromptResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
	// AbortSession stops a prompt still running in the session.
	AbortSession(ctx context.Context, sessionID string) error
}
