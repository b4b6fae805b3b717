package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	sdk "github.com/github/copilot-sdk/go"
)

// DefaultModel is used when neither config nor APPLYBOT_MODEL names one.
const DefaultModel = "gpt-4.1"

var errNotStarted = errors.New("copilot client not started")

// CopilotClient implements Client on the GitHub Copilot SDK. One client
// serves every analysis and regeneration prompt of a run.
type CopilotClient struct {
	model string

	mu       sync.Mutex
	sdk      *sdk.Client
	sessions map[string]*sdk.Session
}

// NewCopilotClient creates a client that opens sessions on model.
func NewCopilotClient(model string) *CopilotClient {
	if model == "" {
		model = DefaultModel
	}
	return &CopilotClient{model: model, sessions: make(map[string]*sdk.Session)}
}

// Start launches the SDK. Calling it again is a no-op.
func (c *CopilotClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk != nil {
		return nil
	}
	client := sdk.NewClient(nil)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting copilot SDK: %w", err)
	}
	c.sdk = client
	slog.Debug("copilot client started", "model", c.model)
	return nil
}

// Stop destroys open sessions and shuts the SDK down.
func (c *CopilotClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.sessions {
		if err := s.Destroy(); err != nil {
			slog.Debug("destroying session failed", "session", id, "error", err)
		}
	}
	clear(c.sessions)
	if c.sdk == nil {
		return nil
	}
	err := c.sdk.Stop()
	c.sdk = nil
	return err
}

func (c *CopilotClient) CreateSession(ctx context.Context, title string, workDir string) (*SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk == nil {
		return nil, errNotStarted
	}

	s, err := c.sdk.CreateSession(ctx, &sdk.SessionConfig{
		Model:               c.model,
		OnPermissionRequest: sdk.PermissionHandler.ApproveAll,
	})
	if err != nil {
		return nil, err
	}
	c.sessions[s.SessionID] = s
	slog.Debug("copilot session opened", "session", s.SessionID, "title", title, "dir", workDir)
	return &SessionInfo{ID: s.SessionID, Title: title}, nil
}

func (c *CopilotClient) SendPrompt(ctx context.Context, sessionID string, prompt string) (*PromptResponse, error) {
	s, err := c.session(sessionID)
	if err != nil {
		return nil, err
	}
	resp, err := s.SendAndWait(ctx, sdk.MessageOptions{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	out := &PromptResponse{}
	if resp != nil && resp.Data.Content != nil {
		out.Content = *resp.Data.Content
	}
	return out, nil
}

func (c *CopilotClient) DeleteSession(_ context.Context, sessionID string) error {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Destroy()
}

func (c *CopilotClient) AbortSession(ctx context.Context, sessionID string) error {
	s, err := c.session(sessionID)
	if err != nil {
		return nil
	}
	return s.Abort(ctx)
}

func (c *CopilotClient) session(id string) (*sdk.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown copilot session %s", id)
	}
	return s, nil
}
